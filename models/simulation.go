package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/domain/trial"
)

// JSONBMap is a custom type for PostgreSQL JSONB columns that maps to map[string]interface{}
type JSONBMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONBMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}

	if len(bytes) == 0 {
		*j = make(JSONBMap)
		return nil
	}

	result := make(JSONBMap)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*j = result
	return nil
}

// ToJSONBMap converts any JSON-encodable struct into a JSONBMap.
func ToJSONBMap(v interface{}) (JSONBMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(JSONBMap)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode unmarshals the map into dst.
func (j JSONBMap) Decode(dst interface{}) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SimulationRun is a persisted run of one of the simulators
type SimulationRun struct {
	ID          core.RunID `json:"id" db:"id"`
	Kind        run.Kind   `json:"kind" db:"kind"`
	Seed        int64      `json:"seed" db:"seed"`
	Fingerprint string     `json:"fingerprint" db:"fingerprint"`
	CodeVersion string     `json:"code_version" db:"code_version"`
	Params      JSONBMap   `json:"params" db:"params"`
	Result      JSONBMap   `json:"result" db:"result"`
	Report      string     `json:"report" db:"report"` // markdown
	DurationMS  int64      `json:"duration_ms" db:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// NewSimulationRun assembles a run record from its manifest, parameters and result.
func NewSimulationRun(m *run.Manifest, params, result interface{}, report string, elapsed time.Duration) (*SimulationRun, error) {
	p, err := ToJSONBMap(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	r, err := ToJSONBMap(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &SimulationRun{
		ID:          m.RunID,
		Kind:        m.Kind,
		Seed:        m.Seed,
		Fingerprint: m.Fingerprint.String(),
		CodeVersion: m.CodeVersion,
		Params:      p,
		Result:      r,
		Report:      report,
		DurationMS:  elapsed.Milliseconds(),
		CreatedAt:   m.CreatedAt,
	}, nil
}

// TrialDesignRecord is the stored form of a trial.Design.
type TrialDesignRecord struct {
	ID        core.DesignID `db:"id"`
	Name      string        `db:"name"`
	Document  JSONBMap      `db:"document"`
	CreatedAt time.Time     `db:"created_at"`
}

// NewTrialDesignRecord encodes d for storage.
func NewTrialDesignRecord(d *trial.Design) (*TrialDesignRecord, error) {
	doc, err := ToJSONBMap(d)
	if err != nil {
		return nil, fmt.Errorf("encode design: %w", err)
	}
	return &TrialDesignRecord{ID: d.ID, Name: d.Name, Document: doc, CreatedAt: d.CreatedAt}, nil
}

// Design decodes the stored document.
func (r *TrialDesignRecord) Design() (*trial.Design, error) {
	var d trial.Design
	if err := r.Document.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode design %s: %w", r.ID, err)
	}
	d.ID = r.ID
	d.CreatedAt = r.CreatedAt
	return &d, nil
}
