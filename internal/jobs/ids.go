package jobs

// IDFromBackup returns the deterministic job id for a backup run as the
// given kind, per spec.md §4.5. IDs are delimited strings embedding the
// client and server paths; callers must treat them as opaque. Nothing
// splits an id back into paths (the orchestrator keeps each job's
// sentinel trigger keyed by id), but two different path pairs that
// contain "_" can join to the same id — see DESIGN.md's Open Question
// decision.
func IDFromBackup(backup Backup, kind Kind) Id {
	switch kind {
	case KindBackupOnChange:
		return backup.ClientLocation.Path + "_" + backup.ServerLocation.Path + "_backup_on_change"
	default:
		return backup.ClientLocation.Path + "_" + backup.ServerLocation.Path + "_backup"
	}
}
