package models

// Job is a uniform request descriptor passed from a flow to a gateway. It has
// no invariants beyond carrying what the target operation expects.
type Job struct {
	Action  string
	ID      string
	Body    any
	Options map[string]any
}

// LogArgs renders the job as key–value pairs for structured logging. Body is
// left out since it may hold credentials.
func (j Job) LogArgs() []any {
	args := []any{"action", j.Action}
	if j.ID != "" {
		args = append(args, "id", j.ID)
	}
	return args
}
