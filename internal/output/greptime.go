package output

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"github.com/DominicTanzillo/Panacea/internal/classify"
)

const defaultGreptimePort = 4001

// greptimeClient is the subset of the ingester client the sink uses.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// Greptime writes enrichment rows to a GreptimeDB table over gRPC.
type Greptime struct {
	client greptimeClient
	table  string
	logger *slog.Logger
	now    func() time.Time
}

// NewGreptime connects to endpoint (host or host:port, default port 4001).
func NewGreptime(endpoint, database, tableName string, logger *slog.Logger) (*Greptime, error) {
	host, port := endpoint, defaultGreptimePort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptime endpoint %q: invalid port", endpoint)
		}
		host, port = h, n
	}

	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating greptime client: %w", err)
	}
	return &Greptime{client: client, table: tableName, logger: logger, now: time.Now}, nil
}

// buildTable lays out one batch. Tags identify the object; the verdict
// and evidence are fields. Null pointers become zero values plus a flag
// column where the distinction matters.
func (g *Greptime) buildTable(records []classify.Enrichment) (*table.Table, error) {
	tbl, err := table.New(g.table)
	if err != nil {
		return nil, err
	}

	cols := []struct {
		name string
		typ  types.ColumnType
		tag  bool
	}{
		{"norad_id", types.INT64, true},
		{"constellation", types.STRING, true},
		{"run_id", types.STRING, true},
		{"name", types.STRING, false},
		{"delta_v_m_s", types.FLOAT64, false},
		{"magnitude_class", types.STRING, false},
		{"is_stationkeeping", types.BOOLEAN, false},
		{"likely_avoidance", types.BOOLEAN, false},
		{"has_cdm", types.BOOLEAN, false},
		{"cdm_pc", types.FLOAT64, false},
		{"screened", types.BOOLEAN, false},
		{"min_distance_km", types.FLOAT64, false},
		{"closest_norad", types.INT64, false},
		{"would_have_collided", types.BOOLEAN, false},
		{"screening_error", types.STRING, false},
	}
	for _, c := range cols {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}

	ts := g.now()
	for _, r := range records {
		var (
			pc, dist float64
			closest  int64
		)
		if r.CDMPc != nil {
			pc = *r.CDMPc
		}
		screened := r.CounterfactualMinDistanceKm != nil
		if screened {
			dist = *r.CounterfactualMinDistanceKm
		}
		if r.CounterfactualClosestNorad != nil {
			closest = int64(*r.CounterfactualClosestNorad)
		}
		err := tbl.AddRow(
			int64(r.NoradID), r.Constellation, r.RunID,
			r.Name, r.DeltaVMS, string(r.MagnitudeClass),
			r.IsStationkeeping, r.LikelyAvoidance,
			r.HasCDM, pc,
			screened, dist, closest, r.WouldHaveCollided, r.CounterfactualError,
			ts,
		)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r.NoradID, err)
		}
	}
	return tbl, nil
}

func (g *Greptime) Write(ctx context.Context, records []classify.Enrichment) error {
	if len(records) == 0 {
		return nil
	}
	tbl, err := g.buildTable(records)
	if err != nil {
		return err
	}
	if _, err := g.client.Write(ctx, tbl); err != nil {
		g.logger.Error("greptime write failed", "table", g.table, "error", err)
		return fmt.Errorf("greptime write: %w", err)
	}
	g.logger.Debug("greptime rows written", "table", g.table, "rows", len(records))
	return nil
}

func (g *Greptime) Close() error { return nil }
