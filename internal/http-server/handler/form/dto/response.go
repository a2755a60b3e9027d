package dto

type StateResponse struct {
	Phase          string `json:"phase"`
	Filename       string `json:"filename,omitempty"`
	HasImage       bool   `json:"has_image"`
	PreviewURL     string `json:"preview_url,omitempty"`
	PreviewType    string `json:"preview_type,omitempty"`
	PreviewWidth   int    `json:"preview_width,omitempty"`
	PreviewHeight  int    `json:"preview_height,omitempty"`
	Loading        bool   `json:"loading"`
	CanSubmit      bool   `json:"can_submit"`
	Error          string `json:"error,omitempty"`
	ProcessedURL   string `json:"processed_url,omitempty"`
	ProcessedPhase string `json:"processed_phase,omitempty"`
	ProcessedLabel string `json:"processed_label,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
