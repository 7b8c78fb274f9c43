package http

// PredictionResponse returns a recorded /api/predict success body.
func PredictionResponse() string {
	return `{
  "predictions": [
    {"class_name": "Tomato_Early_blight", "probability": 0.92},
    {"class_name": "Tomato_healthy", "probability": 0.05},
    {"class_name": "Tomato_Tomato_mosaic_virus", "probability": 0.03}
  ],
  "details": {
    "name": "Early Blight",
    "description": "Fungal disease that starts as small dark brown spots on the leaves and grows into concentric rings.",
    "treatment": "Spray fungicide regularly; remove and destroy infected leaves; keep good air circulation."
  },
  "image_path": "leaf_4821.jpg"
}`
}

// ErrorResponse returns a structured failure body.
func ErrorResponse() string {
	return `{"error": "unsupported file type"}`
}

// DiseasesResponse returns a trimmed /api/diseases body.
func DiseasesResponse() string {
	return `{
  "Tomato_Early_blight": {"name": "Early Blight", "description": "Fungal leaf spots.", "treatment": "Fungicide."},
  "Tomato_healthy": {"name": "Healthy", "description": "No visible disease.", "treatment": "Keep up normal care."}
}`
}
