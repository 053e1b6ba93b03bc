package evaluation

import (
	"fmt"
	"time"

	"github.com/ericscottllc/triggergrain/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// snapshotPoint is the compact wire form of one market observation
type snapshotPoint struct {
	Date         int64   `msgpack:"d"`
	CashPrice    float64 `msgpack:"c"`
	FuturesPrice float64 `msgpack:"f"`
	Basis        float64 `msgpack:"b"`
}

// EncodeMarketSnapshot serializes the market window an evaluation consumed so
// its inputs can be replayed later. Stored as a blob on the evaluation row.
func EncodeMarketSnapshot(window []domain.PricePoint) ([]byte, error) {
	points := make([]snapshotPoint, len(window))
	for i, p := range window {
		points[i] = snapshotPoint{
			Date:         p.Date.Unix(),
			CashPrice:    p.CashPrice,
			FuturesPrice: p.FuturesPrice,
			Basis:        p.Basis,
		}
	}

	data, err := msgpack.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("failed to encode market snapshot: %w", err)
	}
	return data, nil
}

// DecodeMarketSnapshot restores the market window stored with an evaluation
func DecodeMarketSnapshot(data []byte) ([]domain.PricePoint, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var points []snapshotPoint
	if err := msgpack.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to decode market snapshot: %w", err)
	}

	window := make([]domain.PricePoint, len(points))
	for i, p := range points {
		window[i] = domain.PricePoint{
			Date:         time.Unix(p.Date, 0).UTC(),
			CashPrice:    p.CashPrice,
			FuturesPrice: p.FuturesPrice,
			Basis:        p.Basis,
		}
	}
	return window, nil
}
