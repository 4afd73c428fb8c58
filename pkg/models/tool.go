package models

// NextStep signals what the caller of a tool should do after Execute
// returns.
type NextStep string

const (
	NextStepContinue         NextStep = "CONTINUE"
	NextStepRepeat           NextStep = "REPEAT"
	NextStepRequestUserInput NextStep = "REQUEST_USER_INPUT"
)

// ToolResult is the uniform return shape of every tool plug-in's Execute
// method.
type ToolResult struct {
	Success        bool     `json:"success"`
	Output         any      `json:"output"`
	NextStep       NextStep `json:"next_step,omitempty"`
	RequiredParams []string `json:"required_params,omitempty"`
}

// Job is the queued payload processed by a background worker.
type Job struct {
	TaskID          string          `json:"task_id"`
	UserID          string          `json:"user_id"`
	SessionID       string          `json:"session_id"`
	UserInput       string          `json:"user_input"`
	CallbackDetails CallbackDetails `json:"callback_details"`
}

// CallbackDetails describes where and how to deliver the webhook callback.
type CallbackDetails struct {
	WebhookURL     string         `json:"webhook_url,omitempty"`
	AddressingInfo map[string]any `json:"addressing_info,omitempty"`
}

// WebhookStatus is the terminal status reported in a webhook callback.
type WebhookStatus string

const (
	WebhookStatusCompleted WebhookStatus = "completed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// WebhookPayload is the body POSTed to webhook_url when a job ends,
// always delivered regardless of outcome.
type WebhookPayload struct {
	TaskID         string         `json:"task_id"`
	Status         WebhookStatus  `json:"status"`
	AddressingInfo map[string]any `json:"addressing_info,omitempty"`
	FinalOutput    string         `json:"final_output,omitempty"`
}
