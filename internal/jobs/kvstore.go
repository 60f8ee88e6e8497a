package jobs

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// DefaultBucket is the key-value bucket holding job fields.
const DefaultBucket = "TAXONOMIX_JOBS"

// jobIDPattern is a single key token. Wildcards and dots would make the
// per-job watch match other jobs' fields.
var jobIDPattern = regexp.MustCompile(`^[-/_=a-zA-Z0-9]+$`)

// KVStore keeps job fields in a JetStream key-value bucket, one key per
// field ("<id>.<field>"), so any replica can answer a progress poll.
type KVStore struct {
	kv     jetstream.KeyValue
	logger *zap.Logger
}

// NewKVStore opens (or creates) bucket on js. ttl of zero keeps entries forever.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration, logger *zap.Logger) (*KVStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Taxonomix job progress",
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}
	return &KVStore{kv: kv, logger: logger.Named("jobstore")}, nil
}

func (s *KVStore) SetFields(ctx context.Context, id string, fields map[string]string) error {
	for _, field := range writeOrder(fields) {
		if _, err := s.kv.PutString(ctx, fieldKey(id, field), fields[field]); err != nil {
			return fmt.Errorf("put %s for job %s: %w", field, id, err)
		}
	}
	return nil
}

// GetFields returns the stored fields of job id. An id that cannot be a key
// has never been written, so it reads as empty.
func (s *KVStore) GetFields(ctx context.Context, id string) (map[string]string, error) {
	if !jobIDPattern.MatchString(id) {
		return map[string]string{}, nil
	}
	w, err := s.kv.Watch(ctx, id+".*", jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("watch job %s: %w", id, err)
	}
	defer w.Stop()

	fields := make(map[string]string)
	for {
		select {
		case entry, ok := <-w.Updates():
			// a nil entry marks the end of the current values
			if !ok || entry == nil {
				return fields, nil
			}
			fields[strings.TrimPrefix(entry.Key(), id+".")] = string(entry.Value())
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func fieldKey(id, field string) string {
	return id + "." + field
}

// NATS bundles a client connection with the embedded server that backs it,
// if one was started.
type NATS struct {
	Conn      *nats.Conn
	JetStream jetstream.JetStream
	embedded  *server.Server
}

// ConnectNATS connects to url, or starts an embedded JetStream server when
// url is empty. storeDir is where the embedded server keeps its data; empty
// uses a temporary directory.
func ConnectNATS(url, storeDir string, logger *zap.Logger) (*NATS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats")

	n := &NATS{}
	if url != "" {
		logger.Info("connecting to NATS", zap.String("url", url))
		conn, err := nats.Connect(url)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		n.Conn = conn
	} else {
		logger.Info("starting embedded NATS server")
		ns, err := server.NewServer(&server.Options{
			Port:      -1,
			JetStream: true,
			StoreDir:  storeDir,
			NoLog:     true,
			NoSigs:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedded NATS server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return nil, fmt.Errorf("embedded NATS server failed to start")
		}
		n.embedded = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return nil, fmt.Errorf("connect to embedded NATS: %w", err)
		}
		n.Conn = conn
	}

	js, err := jetstream.New(n.Conn)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	n.JetStream = js
	return n, nil
}

// Close drains the connection and stops the embedded server.
func (n *NATS) Close() {
	if n.Conn != nil {
		n.Conn.Drain()
		n.Conn.Close()
	}
	if n.embedded != nil {
		n.embedded.Shutdown()
		n.embedded.WaitForShutdown()
	}
}
