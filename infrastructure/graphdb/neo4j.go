package graphdb

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig holds connection settings for a Neo4j endpoint.
type Neo4jConfig struct {
	// URI is bolt://, bolt+s://, neo4j:// or neo4j+s://.
	URI      string
	Username string
	Password string

	MaxConnectionPoolSize        int
	ConnectionAcquisitionTimeout time.Duration
}

// Neo4jConnector creates drivers for a Neo4j endpoint.
type Neo4jConnector struct {
	config Neo4jConfig
}

// NewNeo4jConnector validates config and returns a connector.
func NewNeo4jConnector(config Neo4jConfig) (*Neo4jConnector, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("neo4j: URI cannot be empty")
	}
	return &Neo4jConnector{config: config}, nil
}

// Target returns the endpoint URI.
func (c *Neo4jConnector) Target() string {
	return c.config.URI
}

// Connect builds the driver. The driver dials lazily; connectivity is
// verified by the provider.
func (c *Neo4jConnector) Connect(ctx context.Context) (Driver, error) {
	auth := neo4j.NoAuth()
	if c.config.Username != "" {
		auth = neo4j.BasicAuth(c.config.Username, c.config.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(c.config.URI, auth, func(cfg *neo4j.Config) {
		if c.config.MaxConnectionPoolSize > 0 {
			cfg.MaxConnectionPoolSize = c.config.MaxConnectionPoolSize
		}
		if c.config.ConnectionAcquisitionTimeout > 0 {
			cfg.ConnectionAcquisitionTimeout = c.config.ConnectionAcquisitionTimeout
		}
		// Retries are owned by RetryPolicy, not the driver.
		cfg.MaxTransactionRetryTime = 0
	})
	if err != nil {
		return nil, err
	}
	return &neo4jDriver{driver: driver}, nil
}

type neo4jDriver struct {
	driver neo4j.DriverWithContext
}

func (d *neo4jDriver) NewSession(ctx context.Context, database string, mode AccessMode) (Session, error) {
	access := neo4j.AccessModeRead
	if mode == AccessWrite {
		access = neo4j.AccessModeWrite
	}
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: database,
		AccessMode:   access,
	})
	return &neo4jSession{session: session}, nil
}

func (d *neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return d.driver.VerifyConnectivity(ctx)
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

type neo4jSession struct {
	session neo4j.SessionWithContext
}

// Run executes an auto-commit statement and collects every row, so the
// session is free to close as soon as Run returns.
func (s *neo4jSession) Run(ctx context.Context, statement string, params map[string]any) ([]Record, error) {
	result, err := s.session.Run(ctx, statement, params)
	if err != nil {
		return nil, err
	}
	rows, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(row.Keys))
		for i, key := range row.Keys {
			rec[key] = row.Values[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *neo4jSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}
