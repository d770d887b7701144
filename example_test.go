package bouncer_test

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ipsentry/bouncer"
)

func ExampleParseAddress() {
	host, _ := bouncer.ParseAddress("::ffff:203.0.113.9")
	network, _ := bouncer.ParseAddress("10.1.2.3/8")

	fmt.Println(host)
	fmt.Println(network)
	fmt.Println(network.Contains(bouncer.MustParseAddress("10.200.0.1")))
	// Output:
	// 203.0.113.9
	// 10.0.0.0/8
	// true
}

func ExamplePolicy_Merge() {
	policy := bouncer.DefaultPolicy()
	decisions := []bouncer.Decision{
		{Type: "captcha", Value: "203.0.113.9"},
		{Type: "ban", Value: "203.0.113.0/24"},
	}

	fmt.Println(policy.Merge(decisions))
	// Output:
	// ban
}

// Example demonstrates mounting the enforcement middleware on a chi router.
// Decisions usually come from the lapi subpackage; any FetchDecisionsFunc
// works.
func Example() {
	fetch := func(_ context.Context, ip string) ([]bouncer.Decision, error) {
		if ip == "203.0.113.9" {
			return []bouncer.Decision{{Type: "ban", Value: ip}}, nil
		}
		return nil, nil
	}

	b, err := bouncer.New(fetch,
		bouncer.TrustLoopbackForwarder(),
		bouncer.WithFailureMode(bouncer.FailureModeClosed),
	)
	if err != nil {
		log.Fatal(err)
	}

	router := chi.NewRouter()
	router.Use(b.Middleware)
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		remediation, _ := bouncer.RemediationFromContext(r.Context())
		fmt.Fprintf(w, "remediation: %s", remediation)
	})

	_ = http.ListenAndServe(":8080", router)
}

func ExampleNewResolver() {
	fetch := func(context.Context, string) ([]bouncer.Decision, error) {
		return []bouncer.Decision{{Type: "captcha", Value: "203.0.113.9"}}, nil
	}

	resolver, err := bouncer.NewResolver(fetch)
	if err != nil {
		log.Fatal(err)
	}

	remediation, err := resolver.Resolve(context.Background(), "203.0.113.9")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(remediation)
	// Output:
	// captcha
}

func ExampleNewClientAddressResolver() {
	resolver, err := bouncer.NewClientAddressResolver(
		bouncer.TrustPrivateForwarderRanges(),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	fmt.Println(resolver.ResolveClientAddress(ctx, "10.0.0.1:4567", "203.0.113.9"))
	fmt.Println(resolver.ResolveClientAddress(ctx, "198.51.100.7:4567", "203.0.113.9"))
	// Output:
	// 203.0.113.9
	// 198.51.100.7:4567
}
