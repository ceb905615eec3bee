package importer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/importer"
)

type namedRunner string

func (n namedRunner) Name() string { return string(n) }

func (namedRunner) RunBatch(context.Context) (*importer.BatchResult, error) {
	return &importer.BatchResult{}, nil
}

func TestScheduler_AddValidatesExpression(t *testing.T) {
	t.Parallel()

	s := importer.NewScheduler(logger.NewNop())
	err := s.Add("every day", namedRunner("brreg"))
	require.Error(t, err)
	assert.Zero(t, s.Len())

	// seconds field is not accepted
	require.Error(t, s.Add("0 */5 * * * *", namedRunner("brreg")))
}

func TestScheduler_ReplacesBotByName(t *testing.T) {
	t.Parallel()

	s := importer.NewScheduler(logger.NewNop())
	require.NoError(t, s.Add("*/10 * * * *", namedRunner("brreg")))
	require.NoError(t, s.Add("0 3 * * *", namedRunner("brreg")))
	require.NoError(t, s.Add("30 4 * * 1", namedRunner("xlsx_leads")))
	assert.Equal(t, 2, s.Len())

	s.Start()
	s.Stop()
}
