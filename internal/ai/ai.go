package ai

import (
	"context"

	"github.com/freedom_case_2/fire/internal/models"
)

// Source delivers a batch of classifier output rows.
type Source interface {
	FetchResults(ctx context.Context) ([]models.ResultRow, error)
}
