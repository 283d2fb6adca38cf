// Package perf measures the throughput of SHA-256 implementations.
package perf

import (
	"context"
	cryptoSha256 "crypto/sha256"
	"hash"
	"math/rand"
	"time"

	minioSha256 "github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/Heidric/digest.git/internal/crypto"
	"github.com/Heidric/digest.git/pkg/sha256"
)

const (
	chunkSize = 100 << 10
	runs      = 3
)

// Contender is a named SHA-256 implementation.
type Contender struct {
	Name string
	New  func() hash.Hash
}

// Contenders returns the implementations compared by the benchmark, this
// module's engine first.
func Contenders() []Contender {
	return []Contender{
		{Name: "digest/pkg/sha256", New: sha256.New},
		{Name: "crypto/sha256", New: cryptoSha256.New},
		{Name: "github.com/minio/sha256-simd", New: minioSha256.New},
	}
}

// Measure hashes random data for roughly duration, three times, and returns
// the best rate in MiB/s rounded to two decimals.
func Measure(duration time.Duration, newFn func() hash.Hash) float64 {
	var perf float64
	for i := 0; i < runs; i++ {
		if v := measureOnce(duration, newFn); v > perf {
			perf = v
		}
	}
	return perf
}

func measureOnce(duration time.Duration, newFn func() hash.Hash) float64 {
	h := newFn()
	bs := make([]byte, chunkSize)
	rand.New(rand.NewSource(time.Now().UnixNano())).Read(bs)

	t0 := time.Now()
	b := 0
	for time.Since(t0) < duration {
		h.Write(bs)
		b += chunkSize
	}
	h.Sum(nil)
	d := time.Since(t0)
	return float64(int(float64(b)/d.Seconds()/(1<<20)*100)) / 100
}

// Result is one row of a benchmark report.
type Result struct {
	Name string
	MiBs float64
}

// Run measures every contender in order. It stops early when ctx is done.
func Run(ctx context.Context, duration time.Duration, contenders []Contender) ([]Result, error) {
	results := make([]Result, 0, len(contenders))
	for _, c := range contenders {
		if err := ctx.Err(); err != nil {
			return results, errors.WithStack(err)
		}
		results = append(results, Result{Name: c.Name, MiBs: Measure(duration, c.New)})
	}
	return results, nil
}

// CrossCheck hashes data with every contender and reports the first one whose
// digest differs from this module's engine.
func CrossCheck(data []byte, contenders []Contender) error {
	want := crypto.HashSHA256(data)
	for _, c := range contenders {
		h := c.New()
		h.Write(data)
		var got crypto.Sum
		copy(got[:], h.Sum(nil))
		if got.String() != want {
			return errors.Errorf("%s: digest %s, want %s", c.Name, got, want)
		}
	}
	return nil
}

// Host describes the machine the benchmark runs on.
type Host struct {
	Model string
	Cores int
	MHz   float64
}

// HostCPU reports the first CPU's model and the logical core count.
func HostCPU(ctx context.Context) (Host, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return Host{}, errors.Wrap(err, "cpu info")
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return Host{}, errors.Wrap(err, "cpu count")
	}

	host := Host{Cores: cores}
	if len(infos) > 0 {
		host.Model = infos[0].ModelName
		host.MHz = infos[0].Mhz
	}
	return host, nil
}
