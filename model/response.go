package model

// PredictionResponse is the JSON body returned by POST /api/predict.
type PredictionResponse struct {
	Predictions []Prediction   `json:"predictions"`
	Details     DiseaseDetails `json:"details"`
	// 元のバックエンドが返す保存ファイル名（表示には使わない）
	ImagePath string `json:"image_path,omitempty"`
}

// Prediction is a single ranked class from the classifier.
type Prediction struct {
	ClassName   string  `json:"class_name"`
	Probability float64 `json:"probability"`
}

// DiseaseDetails describes the primary diagnosis.
type DiseaseDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Treatment   string `json:"treatment"`
}

// ErrorResponse is the optional body of a non-success response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// DiseaseCatalog is the body of GET /api/diseases, keyed by class name.
type DiseaseCatalog map[string]DiseaseDetails
