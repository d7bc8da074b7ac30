package cachestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/authkernel/internal/cache"
	"github.com/dropDatabas3/authkernel/internal/domain/repository"
)

func seedAuthCode(t *testing.T, codes *AuthCodes, hash string) {
	t.Helper()
	now := time.Now().UTC()
	err := codes.Create(context.Background(), &repository.AuthorizationCode{
		CodeHash:        hash,
		ClientID:        "app",
		ResourceOwnerID: "u1",
		RedirectURI:     "https://app.example/cb",
		Scope:           []string{"openid"},
		IssuedAt:        now,
		ExpiresAt:       now.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("seed code: %v", err)
	}
}

func TestAuthCodes_ConsumeIsSingleUse(t *testing.T) {
	codes := &AuthCodes{Cache: cache.NewMemory("")}
	ctx := context.Background()
	seedAuthCode(t, codes, "hash-1")

	got, err := codes.Consume(ctx, "hash-1")
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if got.ClientID != "app" || got.RedirectURI != "https://app.example/cb" {
		t.Fatalf("consumed code: %+v", got)
	}

	if _, err := codes.Consume(ctx, "hash-1"); !repository.IsNotFound(err) {
		t.Fatalf("second consume must be not found, got %v", err)
	}
}

// Canjes concurrentes del mismo code: exactamente uno puede ganar.
func TestAuthCodes_ConcurrentConsume(t *testing.T) {
	codes := &AuthCodes{Cache: cache.NewMemory("")}
	ctx := context.Background()
	seedAuthCode(t, codes, "hash-1")

	const workers = 16
	var (
		start     = make(chan struct{})
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		misses    int
		unexpects []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := codes.Consume(ctx, "hash-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case repository.IsNotFound(err):
				misses++
			default:
				unexpects = append(unexpects, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(unexpects) > 0 {
		t.Fatalf("unexpected errors: %v", unexpects)
	}
	if wins != 1 {
		t.Fatalf("authorization code consumed %d times, want exactly 1", wins)
	}
	if misses != workers-1 {
		t.Fatalf("misses = %d, want %d", misses, workers-1)
	}
}

// trackingClient cuenta las operaciones que Consume ejecuta sobre el cache.
type trackingClient struct {
	cache.Client
	gets       int
	deletes    int
	getDeletes int
}

func (c *trackingClient) Get(ctx context.Context, key string) (string, error) {
	c.gets++
	return c.Client.Get(ctx, key)
}

func (c *trackingClient) Delete(ctx context.Context, key string) error {
	c.deletes++
	return c.Client.Delete(ctx, key)
}

func (c *trackingClient) GetDelete(ctx context.Context, key string) (string, error) {
	c.getDeletes++
	return c.Client.GetDelete(ctx, key)
}

// Consume debe resolverse en una sola operación get-and-delete del backend;
// un par Get+Delete separado deja la ventana en la que dos canjes ganan.
func TestAuthCodes_ConsumeIsAtomicOnTheBackend(t *testing.T) {
	tc := &trackingClient{Client: cache.NewMemory("")}
	codes := &AuthCodes{Cache: tc}
	seedAuthCode(t, codes, "hash-1")

	if _, err := codes.Consume(context.Background(), "hash-1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if tc.getDeletes != 1 {
		t.Fatalf("GetDelete calls = %d, want 1", tc.getDeletes)
	}
	if tc.gets != 0 || tc.deletes != 0 {
		t.Fatalf("consume used Get/Delete (%d/%d) instead of the atomic operation", tc.gets, tc.deletes)
	}
}

func TestRefreshTokens_RoundTrip(t *testing.T) {
	tokens := &RefreshTokens{Cache: cache.NewMemory("")}
	ctx := context.Background()

	id, err := tokens.Create(ctx, repository.CreateRefreshTokenInput{
		ClientID:  "app",
		TokenHash: "rt-hash",
		Scope:     []string{"openid"},
		TTL:       time.Hour,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rt, err := tokens.GetByHash(ctx, "rt-hash")
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if rt.ID != id || rt.ClientID != "app" {
		t.Fatalf("token: %+v", rt)
	}

	if err := tokens.Revoke(ctx, id); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	rt, err = tokens.GetByHash(ctx, "rt-hash")
	if err != nil {
		t.Fatalf("get after revoke: %v", err)
	}
	if rt.RevokedAt == nil {
		t.Fatal("token should carry the revocation mark")
	}
}
