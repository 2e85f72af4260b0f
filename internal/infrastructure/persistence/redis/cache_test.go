package redis

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"skillforge-api/internal/config"
)

// respServer 进程内的最小 RESP2 服务端，只实现缓存用到的命令
type respServer struct {
	ln net.Listener

	mu      sync.Mutex
	data    map[string][]byte
	expires map[string]string
	failGet bool
}

func newRESPServer(t *testing.T) *respServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &respServer{ln: ln, data: map[string][]byte{}, expires: map[string]string{}}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *respServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *respServer) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, s.exec(args)); err != nil {
			return
		}
	}
}

func (s *respServer) exec(args []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "GET":
		if s.failGet {
			return "-ERR injected read failure\r\n"
		}
		v, ok := s.data[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "SET":
		s.data[args[1]] = []byte(args[2])
		if len(args) >= 5 {
			s.expires[args[1]] = strings.ToLower(args[3]) + " " + args[4]
		}
		return "+OK\r\n"
	case "DEL":
		n := 0
		for _, k := range args[1:] {
			if _, ok := s.data[k]; ok {
				delete(s.data, k)
				n++
			}
		}
		return fmt.Sprintf(":%d\r\n", n)
	case "CLIENT", "SELECT":
		return "+OK\r\n"
	default:
		return "-ERR unknown command '" + args[0] + "'\r\n"
	}
}

func (s *respServer) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *respServer) put(key string, v []byte) {
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
}

func (s *respServer) expiry(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expires[key]
}

func (s *respServer) setFailGet(v bool) {
	s.mu.Lock()
	s.failGet = v
	s.mu.Unlock()
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, errors.New("expected array")
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		hdr, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(hdr[1:]))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func newTestClient(t *testing.T, s *respServer) *Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:            s.ln.Addr().String(),
		Protocol:        2,
		DisableIdentity: true,
	})
	c := NewClientFromRedis(rdb, &config.RedisConfig{})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

const testPrefix = "skillforge:test:"

func TestGetOrLoadSafe_MissLoadsAndWritesBack(t *testing.T) {
	srv := newRESPServer(t)
	cache := NewCache(newTestClient(t, srv), testPrefix)

	var loads int32
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&loads, 1)
		return []byte(`{"models_v1":{}}`), nil
	}

	data, hit, err := cache.GetOrLoadSafe(context.Background(), "listings", 10*time.Minute, loader)
	if err != nil || hit || string(data) != `{"models_v1":{}}` {
		t.Fatalf("first = %q, hit=%v, err=%v", data, hit, err)
	}
	if v, ok := srv.get(testPrefix + "listings"); !ok || string(v) != `{"models_v1":{}}` {
		t.Fatalf("stored = %q, %v", v, ok)
	}
	if got := srv.expiry(testPrefix + "listings"); got != "ex 600" {
		t.Fatalf("expiry = %q", got)
	}

	data, hit, err = cache.GetOrLoadSafe(context.Background(), "listings", 10*time.Minute, loader)
	if err != nil || !hit || string(data) != `{"models_v1":{}}` {
		t.Fatalf("second = %q, hit=%v, err=%v", data, hit, err)
	}
	if n := atomic.LoadInt32(&loads); n != 1 {
		t.Fatalf("loads = %d, want 1", n)
	}
}

func TestGetOrLoadSafe_LoaderErrorIsNotCached(t *testing.T) {
	srv := newRESPServer(t)
	cache := NewCache(newTestClient(t, srv), testPrefix)
	boom := errors.New("upstream incomplete")

	var loads int
	loader := func(context.Context) ([]byte, error) {
		loads++
		return nil, boom
	}
	for i := 0; i < 2; i++ {
		if _, _, err := cache.GetOrLoadSafe(context.Background(), "listings", time.Minute, loader); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	}
	if loads != 2 {
		t.Fatalf("loads = %d, want 2", loads)
	}
	if _, ok := srv.get(testPrefix + "listings"); ok {
		t.Fatal("loader error must not be cached")
	}
}

func TestGetOrLoadSafe_ReadFailureFallsBackToLoader(t *testing.T) {
	srv := newRESPServer(t)
	srv.setFailGet(true)
	cache := NewCache(newTestClient(t, srv), testPrefix)

	data, hit, err := cache.GetOrLoadSafe(context.Background(), "listings", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	if err != nil || hit || string(data) != "fresh" {
		t.Fatalf("got %q, hit=%v, err=%v", data, hit, err)
	}
}

func TestGetOrLoadSafe_ConcurrentMissesLoadOnce(t *testing.T) {
	srv := newRESPServer(t)
	cache := NewCache(newTestClient(t, srv), testPrefix)

	var loads int32
	loader := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&loads, 1)
		time.Sleep(50 * time.Millisecond)
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if data, _, err := cache.GetOrLoadSafe(context.Background(), "listings", time.Minute, loader); err != nil || string(data) != "v" {
				t.Errorf("got %q, err=%v", data, err)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt32(&loads); n != 1 {
		t.Fatalf("loads = %d, want 1", n)
	}
}

func TestCache_DeleteUsesPrefix(t *testing.T) {
	srv := newRESPServer(t)
	cache := NewCache(newTestClient(t, srv), testPrefix)
	srv.put(testPrefix+"listings", []byte("old"))
	srv.put("listings", []byte("other"))

	if err := cache.Delete(context.Background(), "listings"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := srv.get(testPrefix + "listings"); ok {
		t.Fatal("prefixed key still present")
	}
	if _, ok := srv.get("listings"); !ok {
		t.Fatal("unprefixed key must be untouched")
	}
}

func TestNewClientAndHealthCheck(t *testing.T) {
	srv := newRESPServer(t)
	host, portStr, _ := net.SplitHostPort(srv.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	c, err := NewClient(&config.RedisConfig{Host: host, Port: port, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	_ = srv.ln.Close()
	if _, err := NewClient(&config.RedisConfig{Host: host, Port: port, DialTimeout: 200 * time.Millisecond}); err == nil {
		t.Fatal("expected ping failure once the server is gone")
	}
}
