package fees

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chargeshare/backend/services/charging-service/internal/models"
)

func TestCalculate(t *testing.T) {
	cfg := models.FeesConfig{MinimumFee: 40, Percentage: 10}

	tests := map[string]struct {
		base     int64
		cfg      models.FeesConfig
		wantFee  int64
		wantTotl int64
	}{
		"minimum fee wins": {base: 100 * CentsPerUnit, cfg: cfg, wantFee: 40 * CentsPerUnit, wantTotl: 140 * CentsPerUnit},
		"percentage wins":  {base: 1000 * CentsPerUnit, cfg: cfg, wantFee: 100 * CentsPerUnit, wantTotl: 1100 * CentsPerUnit},
		"rounds half up":   {base: 105, cfg: models.FeesConfig{Percentage: 10}, wantFee: 11, wantTotl: 116},
		"rounds down":      {base: 104, cfg: models.FeesConfig{Percentage: 10}, wantFee: 10, wantTotl: 114},
		"zero base":        {base: 0, cfg: cfg, wantFee: 40 * CentsPerUnit, wantTotl: 40 * CentsPerUnit},
		"negative clamps":  {base: -50, cfg: models.FeesConfig{Percentage: 10}, wantFee: 0, wantTotl: 0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := Calculate(tc.base, tc.cfg)
			require.Equal(t, tc.wantFee, got.Fee)
			require.Equal(t, tc.wantTotl, got.Total)
			require.Equal(t, got, Calculate(tc.base, tc.cfg))
		})
	}
}

func TestBaseAmount(t *testing.T) {
	require.Equal(t, int64(2250), BaseAmount(15, 150))
	require.Equal(t, int64(1113), BaseAmount(7.42, 150))
	require.Zero(t, BaseAmount(0, 150))
	require.Zero(t, BaseAmount(3, 0))
}

func TestToCents(t *testing.T) {
	require.Equal(t, int64(4000), ToCents(40))
	require.Equal(t, int64(1999), ToCents(19.99))
}
