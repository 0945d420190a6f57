package model

import "time"

// OperationLogEntry is one record of the operation log. Entries are only ever
// appended; BackupPath references the backup created by the same operation.
type OperationLogEntry struct {
	OperationID         string      `json:"operation_id"`
	Timestamp           time.Time   `json:"timestamp"`
	FilePath            string      `json:"filepath"`
	ImprovementKind     string      `json:"improvement_type"`
	OriginalFingerprint Fingerprint `json:"original_hash"`
	NewFingerprint      Fingerprint `json:"new_hash"`
	BackupPath          string      `json:"backup_path"`
	ModelIdentifier     string      `json:"ai_model"`
	SafetyChecksPassed  bool        `json:"safety_checks_passed"`
	ChangeRatio         float64     `json:"change_ratio"`
	LinesAdded          int         `json:"lines_added"`
	LinesRemoved        int         `json:"lines_removed"`
}
