package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/leo-transcode-sim/internal/logging"
	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// Format selects the export encoding.
type Format string

const (
	// FormatJSON writes an indented JSON document.
	FormatJSON Format = "json"
	// FormatProto writes the same document as a binary google.protobuf.Struct.
	FormatProto Format = "pb"
)

type energyRow struct {
	Slot    int     `json:"slot"`
	Region  int     `json:"region"`
	Bitrate float64 `json:"bitrate"`
	model.EnergyRecord
}

// Document is the exported form of a ledger.
type Document struct {
	Activations []model.ActivationRecord `json:"activations"`
	Scheduling  []model.SchedulingRecord `json:"scheduling"`
	Delays      []model.DelayRecord      `json:"delays"`
	Energy      []energyRow              `json:"energy"`
	Summary     Summary                  `json:"summary"`
}

// Document snapshots the ledger in export order.
func (l *Ledger) Document() Document {
	recs := l.EnergyRecords()
	rows := make([]energyRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, energyRow{
			Slot:         rec.Key.Slot,
			Region:       rec.Key.Region,
			Bitrate:      rec.Key.Bitrate.Mbps(),
			EnergyRecord: rec,
		})
	}
	return Document{
		Activations: l.Activations(),
		Scheduling:  l.Schedulings(),
		Delays:      l.Delays(),
		Energy:      rows,
		Summary:     l.Summary(),
	}
}

// Export writes the ledger document to w.
func (l *Ledger) Export(w io.Writer, format Format) error {
	doc := l.Document()
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode ledger json: %w", err)
		}
	case FormatProto:
		st, err := toStruct(doc)
		if err != nil {
			return err
		}
		raw, err := proto.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshal ledger proto: %w", err)
		}
		if _, err := w.Write(raw); err != nil {
			return fmt.Errorf("write ledger proto: %w", err)
		}
	default:
		return fmt.Errorf("unsupported ledger format %q", format)
	}

	l.log.Info(context.Background(), "ledger exported",
		logging.String("format", string(format)),
		logging.Int("records", l.Len()),
	)
	return nil
}

// toStruct converts the document through its JSON form so the protobuf and
// JSON exports share one schema.
func toStruct(doc Document) (*structpb.Struct, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	st, err := structpb.NewStruct(generic)
	if err != nil {
		return nil, fmt.Errorf("build ledger struct: %w", err)
	}
	return st, nil
}
