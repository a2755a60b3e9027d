package dto

import "medtech-planner/internal/domain"

func NewStateResponse(st domain.State) StateResponse {
	resp := StateResponse{
		Phase:         st.Phase.String(),
		Filename:      st.Filename,
		HasImage:      st.HasImage,
		PreviewURL:    st.Preview.DataURL,
		PreviewType:   st.Preview.MimeType,
		PreviewWidth:  st.Preview.Width,
		PreviewHeight: st.Preview.Height,
		Loading:       st.Loading,
		CanSubmit:     st.CanSubmit(),
		Error:         st.Error,
	}

	if st.Processed != nil {
		resp.ProcessedURL = st.Processed.URL
		resp.ProcessedPhase = st.Processed.Phase.String()
		resp.ProcessedLabel = st.ProcessedLabel()
	}

	return resp
}
