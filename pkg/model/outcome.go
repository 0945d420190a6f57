package model

// Stage is a state of the rewrite state machine.
type Stage string

const (
	StageStart                Stage = "start"
	StageBackedUp             Stage = "backed_up"
	StageValidatedPre         Stage = "validated_pre"
	StageGenerated            Stage = "generated"
	StageValidatedPost        Stage = "validated_post"
	StageSyntaxChecked        Stage = "syntax_checked"
	StageWritten              Stage = "written"
	StageLogged               Stage = "logged"
	StageDone                 Stage = "done"
	StageFailed               Stage = "failed"
	StageRestoredAfterFailure Stage = "restored_after_failure"
)

// Terminal reports whether no further transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed || s == StageRestoredAfterFailure
}

// RewriteOutcome is the per-file result of a rewrite or rollback.
type RewriteOutcome struct {
	FilePath   string  `json:"filepath"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Code       string  `json:"code,omitempty"`
	Stage      Stage   `json:"stage"`
	FailedAt   Stage   `json:"failed_at,omitempty"`
	BackupPath string  `json:"backup_path,omitempty"`
	Changed    bool    `json:"changed"`
	Ratio      float64 `json:"change_ratio,omitempty"`
	Diff       string  `json:"diff,omitempty"`
}
