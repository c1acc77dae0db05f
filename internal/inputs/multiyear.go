package inputs

import (
	"fmt"
	"math"

	"github.com/microgrid-sizing/backend/internal/models"
)

// ExpandMultiyear repeats one year of demand and forecast data across the
// horizon. Demand in year y (0-based) is scaled by (1+growth)^y and both
// series gain a year column. The time column is shifted by one period per
// year so it keeps increasing. The inputs are not modified.
func ExpandMultiyear(demand, forecast *models.Series, my models.MultiyearData, years int) (*models.Series, *models.Series, error) {
	if years < 1 {
		return nil, nil, fmt.Errorf("%w: years must be >= 1, got %d", models.ErrConfig, years)
	}
	if my.DemandGrowth <= -1 {
		return nil, nil, fmt.Errorf("%w: demand_growth must be > -1, got %v", models.ErrConfig, my.DemandGrowth)
	}

	factors := make([]float64, years)
	for y := range factors {
		factors[y] = math.Pow(1+my.DemandGrowth, float64(y))
	}

	d := repeat(demand, years, func(col string, y int, v float64) float64 {
		if col == models.ColumnDemand {
			return v * factors[y]
		}
		return v
	})
	f := repeat(forecast, years, nil)
	return d, f, nil
}

func repeat(s *models.Series, years int, scale func(col string, y int, v float64) float64) *models.Series {
	n := s.Len()
	out := models.NewSeries()
	for _, col := range s.Columns {
		if col == models.ColumnYear {
			continue
		}
		src := s.Column(col)
		dst := make([]float64, 0, n*years)
		for y := 0; y < years; y++ {
			for _, v := range src {
				if col == models.ColumnTime {
					v += float64(y * n)
				} else if scale != nil {
					v = scale(col, y, v)
				}
				dst = append(dst, v)
			}
		}
		out.Set(col, dst)
	}

	yearCol := make([]float64, 0, n*years)
	for y := 0; y < years; y++ {
		for i := 0; i < n; i++ {
			yearCol = append(yearCol, float64(y))
		}
	}
	out.Set(models.ColumnYear, yearCol)
	return out
}
