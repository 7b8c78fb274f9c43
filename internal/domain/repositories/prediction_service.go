package repositories

import (
	"context"

	"tomato-demo/internal/domain/entities"
)

// 病害分類バックエンド（/api/predict）
type PredictionService interface {
	Submit(ctx context.Context, candidate *entities.UploadCandidate) (*entities.PredictionResult, error)
}

// バックエンドの補助API（/api/health, /api/diseases）
type DiseaseCatalogService interface {
	Health(ctx context.Context) error

	Diseases(ctx context.Context) (map[string]entities.DiseaseDetails, error)
}
