// Command authcore-loadtest measures Redis session store latency under
// concurrent load and login throughput through a Manager.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/backend"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/store/memstore"
	"github.com/MrEthical07/authcore/store/redisstore"
)

type payload struct {
	Counter int    `json:"counter"`
	Theme   string `json:"theme"`
}

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		users       = flag.Int("users", 1000, "number of users owning the seeded sessions")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per store phase (load + save)")
		logins      = flag.Int("logins", 2000, "password logins in the login phase (0 skips it)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "as", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *users <= 0 || *concurrency <= 0 || *ops <= 0 || *logins < 0 {
		fmt.Fprintln(os.Stderr, "sessions, users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := redisstore.DefaultConfig()
	cfg.Prefix = *prefix
	store := redisstore.New[payload](client, cfg, nil)

	ids := make([]session.ID, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range ids {
		ids[i] = session.NewID()
		owner := fmt.Sprintf("u%d", i%*users)
		if err := store.Save(ctx, ids[i], owner, payload{Theme: "dark"}); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loadStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, ok, err := store.Load(ctx, ids[r.Intn(len(ids))])
		if err == nil && !ok {
			return fmt.Errorf("seeded session missing")
		}
		return err
	})

	saveStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		idx := r.Intn(len(ids))
		return store.Save(ctx, ids[idx], fmt.Sprintf("u%d", idx%*users), payload{Counter: i, Theme: "light"})
	})

	fmt.Println("---- results ----")
	printStats("load", loadStats)
	printStats("save", saveStats)

	if *logins > 0 {
		stats, err := runLoginPhase(ctx, client, store, *logins, *concurrency)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login phase: %v\n", err)
			os.Exit(1)
		}
		printStats("login", stats)
	}
}

// runLoginPhase drives full password logins through a Manager whose users
// live in memory and whose sessions and throttling live in Redis.
func runLoginPhase(ctx context.Context, client redis.UniversalClient, store *redisstore.Store[payload], logins, concurrency int) (phaseStats, error) {
	const secret = "loadtest-password-2718"

	argon, err := password.NewArgon2(password.Argon2Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		return phaseStats{}, err
	}
	reg, err := password.NewRegistry(argon, argon)
	if err != nil {
		return phaseStats{}, err
	}
	valid, err := password.Validate(secret, nil)
	if err != nil {
		return phaseStats{}, err
	}
	hashed, err := reg.Hash(valid)
	if err != nil {
		return phaseStats{}, err
	}

	users := memstore.New[payload]()
	const accounts = 64
	for i := 0; i < accounts; i++ {
		if _, err := users.AddUser(fmt.Sprintf("user%d@load.test", i), hashed); err != nil {
			return phaseStats{}, err
		}
	}

	composite, err := backend.New[*memstore.User, payload](store, users)
	if err != nil {
		return phaseStats{}, err
	}

	cfg := authcore.DefaultConfig()
	cfg.Password.StrengthCheck = false
	cfg.Log.Level = "warn"
	m, err := authcore.New[*memstore.User, payload]().
		WithConfig(cfg).
		WithBackend(composite).
		WithRedis(client).
		WithPasswordRegistry(reg).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return phaseStats{}, err
	}
	defer m.Close()

	stats := runPhase(logins, concurrency, func(_ *rand.Rand, i int) error {
		sess, err := m.Acquire(ctx, "")
		if err != nil {
			return err
		}
		if err := m.Login(ctx, sess, fmt.Sprintf("user%d@load.test", i%accounts), secret); err != nil {
			return err
		}
		return m.Save(ctx, sess)
	})

	snap := m.MetricsSnapshot()
	fmt.Printf("manager: login_success=%d login_failure=%d sessions_saved=%d\n",
		snap.Counters[authcore.MetricLoginSuccess], snap.Counters[authcore.MetricLoginFailure], snap.Counters[authcore.MetricSessionSaved])
	return stats, nil
}

// runPhase calls op ops times from concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
