package dto

type PhaseRequest struct {
	Phase string `form:"phase" validate:"required,oneof=arterial venous"`
}

type SubmitRequest struct {
	Phase string `form:"phase" validate:"omitempty,oneof=arterial venous"`
}

type ResultRequest struct {
	Key string `uri:"key" validate:"required,uuid"`
}
