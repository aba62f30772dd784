package genie_test

import (
	"fmt"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rgeissen/uderia-sub003/genie"
)

var _ = Describe("SessionCache", func() {
	var cache *genie.SessionCache

	BeforeEach(func() {
		cache = genie.NewSessionCache()
	})

	It("creates a session once and reuses it on later calls", func() {
		created := 0
		create := func() (string, error) {
			created++
			return fmt.Sprintf("slave-%d", created), nil
		}

		first, err := cache.GetOrCreate("parent", "profile", create)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal("slave-1"))

		second, err := cache.GetOrCreate("parent", "profile", create)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal("slave-1"))
		Expect(created).To(Equal(1))
	})

	It("keeps bindings separate per (parent, profile) pair", func() {
		mk := func(id string) func() (string, error) {
			return func() (string, error) { return id, nil }
		}

		a, _ := cache.GetOrCreate("p1", "math", mk("s-a"))
		b, _ := cache.GetOrCreate("p1", "finance", mk("s-b"))
		c, _ := cache.GetOrCreate("p2", "math", mk("s-c"))

		Expect(a).To(Equal("s-a"))
		Expect(b).To(Equal("s-b"))
		Expect(c).To(Equal("s-c"))
	})

	It("converges concurrent first invocations on a single creation", func() {
		var created int32
		create := func() (string, error) {
			n := atomic.AddInt32(&created, 1)
			return fmt.Sprintf("slave-%d", n), nil
		}

		const workers = 16
		results := make([]string, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := cache.GetOrCreate("parent", "profile", create)
				Expect(err).NotTo(HaveOccurred())
				results[i] = id
			}(i)
		}
		wg.Wait()

		Expect(atomic.LoadInt32(&created)).To(Equal(int32(1)))
		for _, id := range results {
			Expect(id).To(Equal(results[0]))
		}
	})

	It("does not cache a failed creation", func() {
		calls := 0
		_, err := cache.GetOrCreate("parent", "profile", func() (string, error) {
			calls++
			return "", fmt.Errorf("boom")
		})
		Expect(err).To(MatchError("boom"))

		id, err := cache.GetOrCreate("parent", "profile", func() (string, error) {
			calls++
			return "slave-retry", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("slave-retry"))
		Expect(calls).To(Equal(2))
	})

	Describe("Preload", func() {
		It("seeds bindings without overwriting existing entries", func() {
			_, err := cache.GetOrCreate("parent", "math", func() (string, error) { return "live", nil })
			Expect(err).NotTo(HaveOccurred())

			cache.Preload("parent", map[string]string{
				"math":    "stale",
				"finance": "persisted",
				"empty":   "",
			})

			id, _ := cache.GetOrCreate("parent", "math", func() (string, error) {
				Fail("create should not run for a cached pair")
				return "", nil
			})
			Expect(id).To(Equal("live"))

			id, _ = cache.GetOrCreate("parent", "finance", func() (string, error) {
				Fail("create should not run for a preloaded pair")
				return "", nil
			})
			Expect(id).To(Equal("persisted"))

			Expect(cache.Snapshot("parent")).NotTo(HaveKey("empty"))
		})

		It("does not displace a creation already in flight", func() {
			creating := make(chan struct{})
			release := make(chan struct{})

			var inFlight string
			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				id, err := cache.GetOrCreate("parent", "math", func() (string, error) {
					close(creating)
					<-release
					return "freshly-created", nil
				})
				Expect(err).NotTo(HaveOccurred())
				inFlight = id
			}()

			<-creating
			preloaded := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(preloaded)
				cache.Preload("parent", map[string]string{"math": "persisted-binding"})
			}()

			close(release)
			<-done
			<-preloaded

			later, err := cache.GetOrCreate("parent", "math", func() (string, error) {
				Fail("create should not run for an established pair")
				return "", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(later).To(Equal(inFlight))
		})
	})

	Describe("Snapshot", func() {
		It("returns only the requested parent's bindings", func() {
			cache.Preload("p1", map[string]string{"math": "s1"})
			cache.Preload("p2", map[string]string{"math": "s2", "finance": "s3"})

			Expect(cache.Snapshot("p1")).To(Equal(map[string]string{"math": "s1"}))
			Expect(cache.Snapshot("p2")).To(HaveLen(2))
		})
	})

	Describe("Clear", func() {
		It("drops all bindings for one parent session", func() {
			cache.Preload("p1", map[string]string{"math": "s1"})
			cache.Preload("p2", map[string]string{"math": "s2"})

			cache.Clear("p1")

			Expect(cache.Snapshot("p1")).To(BeEmpty())
			Expect(cache.Snapshot("p2")).To(HaveLen(1))
		})
	})
})
