package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB column support for sqlx. Analysis, DeepAnalysis and DistributionLog
// live in jsonb columns of the recordings table.

func jsonbValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return b, nil
}

func jsonbScan(src, dst any) error {
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

func (a Analysis) Value() (driver.Value, error) { return jsonbValue(a) }
func (a *Analysis) Scan(src any) error          { return jsonbScan(src, a) }

func (d DeepAnalysis) Value() (driver.Value, error) { return jsonbValue(d) }
func (d *DeepAnalysis) Scan(src any) error          { return jsonbScan(src, d) }

func (l DistributionLog) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return jsonbValue(l)
}

func (l *DistributionLog) Scan(src any) error { return jsonbScan(src, l) }
