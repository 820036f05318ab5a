package report

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage errors.
var (
	ErrNotFound     = errors.New("report: not found")
	ErrBadSignature = errors.New("report: invalid signature")
	ErrExpired      = errors.New("report: link expired")
	ErrNoSigningKey = errors.New("report: signing key is empty")
	ErrInvalidName  = errors.New("report: invalid file name")
)

// BlobStore is remote document storage that hands out expiring links.
type BlobStore interface {
	Upload(ctx context.Context, key string, doc Document) error
	Sign(key string, ttl time.Duration) (string, error)
}

// Signer creates and checks HMAC-SHA256 link signatures.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer. An empty secret is rejected.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrNoSigningKey
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

func (s *Signer) mac(key string, expires int64) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(key))
	h.Write([]byte{'\n'})
	h.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// Query returns the expires and sig query parameters for key.
func (s *Signer) Query(key string, ttl time.Duration) url.Values {
	expires := s.now().Add(ttl).Unix()
	return url.Values{
		"expires": {strconv.FormatInt(expires, 10)},
		"sig":     {s.mac(key, expires)},
	}
}

// Verify checks a signature produced by Query.
func (s *Signer) Verify(key, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(sig), []byte(s.mac(key, exp))) {
		return ErrBadSignature
	}
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

// RedisBlobStore keeps documents in Redis hashes and signs links served by
// the reports endpoint.
type RedisBlobStore struct {
	client  *redis.Client
	signer  *Signer
	prefix  string
	baseURL string
	retain  time.Duration
}

// RedisBlobOption configures a RedisBlobStore.
type RedisBlobOption func(*RedisBlobStore)

// WithBlobPrefix sets the key prefix.
func WithBlobPrefix(prefix string) RedisBlobOption {
	return func(s *RedisBlobStore) {
		s.prefix = prefix
	}
}

// WithPublicBaseURL sets the scheme and host signed links start with.
func WithPublicBaseURL(base string) RedisBlobOption {
	return func(s *RedisBlobStore) {
		s.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithRetention expires stored documents after d. Zero keeps them.
func WithRetention(d time.Duration) RedisBlobOption {
	return func(s *RedisBlobStore) {
		s.retain = d
	}
}

// NewRedisBlobStore creates a store on an existing client.
func NewRedisBlobStore(client *redis.Client, signer *Signer, opts ...RedisBlobOption) *RedisBlobStore {
	s := &RedisBlobStore{
		client: client,
		signer: signer,
		prefix: "scoutgraph:report:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisBlobStore) key(name string) string {
	return s.prefix + name
}

// Upload implements BlobStore.
func (s *RedisBlobStore) Upload(ctx context.Context, key string, doc Document) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(key), "body", doc.Body, "content_type", doc.ContentType)
	if s.retain > 0 {
		pipe.Expire(ctx, s.key(key), s.retain)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upload report %s: %w", key, err)
	}
	return nil
}

// Sign implements BlobStore.
func (s *RedisBlobStore) Sign(key string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", ErrNoSigningKey
	}
	return s.baseURL + "/api/reports/" + escapePath(key) + "?" + s.signer.Query(key, ttl).Encode(), nil
}

// Open verifies a signed link and returns the stored document.
func (s *RedisBlobStore) Open(ctx context.Context, key, expires, sig string) (Document, error) {
	if s.signer == nil {
		return Document{}, ErrNoSigningKey
	}
	if err := s.signer.Verify(key, expires, sig); err != nil {
		return Document{}, err
	}
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("load report %s: %w", key, err)
	}
	body, ok := fields["body"]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{
		Body:        []byte(body),
		ContentType: fields["content_type"],
		Ext:         filepath.Ext(key),
	}, nil
}

func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// LocalStore writes documents to a directory served under /api/pdf.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Dir returns the last element of the root, which appears in URLs.
func (s *LocalStore) Dir() string {
	return filepath.Base(s.dir)
}

// Save writes doc as name and returns its URL path.
func (s *LocalStore) Save(name string, doc Document) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), doc.Body, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return "/api/pdf/" + url.PathEscape(s.Dir()) + "/" + url.PathEscape(name), nil
}

// Path resolves a URL's directory and file to a path on disk.
func (s *LocalStore) Path(dir, name string) (string, error) {
	if dir != s.Dir() || !validName(name) {
		return "", ErrNotFound
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}
