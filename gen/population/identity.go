package population

import (
	"fmt"
	"math/rand"
	"sort"
)

const alphaNum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlpha(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphaNum[rng.Intn(len(alphaNum))]
	}
	return string(b)
}

func randomAccountID(rng *rand.Rand) string {
	b := make([]byte, 12)
	for i := range b {
		b[i] = byte('0' + rng.Intn(10))
	}
	return string(b)
}

func randomPublicIP(rng *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		1+rng.Intn(223), rng.Intn(256), rng.Intn(256), 1+rng.Intn(254))
}

func randomPrivateIP(rng *rand.Rand) string {
	switch rng.Intn(3) {
	case 0:
		return fmt.Sprintf("10.%d.%d.%d", rng.Intn(256), rng.Intn(256), 1+rng.Intn(254))
	case 1:
		return fmt.Sprintf("192.168.%d.%d", rng.Intn(256), 1+rng.Intn(254))
	default:
		return fmt.Sprintf("172.%d.%d.%d", 16+rng.Intn(16), rng.Intn(256), 1+rng.Intn(254))
	}
}

func randomHumanUserAgent(rng *rand.Rand) string {
	switch rng.Intn(6) {
	case 0:
		safari := fmt.Sprintf("%d.%d", 605+rng.Intn(2), 1+rng.Intn(19))
		return fmt.Sprintf(
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5_2) AppleWebKit/%s (KHTML, like Gecko) Version/%d.%d Safari/%s",
			safari, 16+rng.Intn(2), rng.Intn(3), safari)
	case 1:
		return fmt.Sprintf(
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
			118+rng.Intn(5))
	case 2:
		return fmt.Sprintf(
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
			117+rng.Intn(4))
	case 3:
		return fmt.Sprintf(
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) Gecko/20100101 Firefox/%d.0",
			116+rng.Intn(5))
	case 4:
		return fmt.Sprintf(
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_%d like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/%d.0 Mobile/15E148 Safari/604.1",
			rng.Intn(3), 16+rng.Intn(2))
	default:
		return fmt.Sprintf(
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36",
			123+rng.Intn(4))
	}
}

func randomServiceUserAgent(rng *rand.Rand) string {
	switch rng.Intn(5) {
	case 0:
		return "aws-sdk-go/1.44.2 (go1.20.5; linux; amd64)"
	case 1:
		return "aws-sdk-java/1.12.500 Linux/5.15.0 OpenJDK_64-Bit_Server_VM/17.0.8"
	case 2:
		return "aws-sdk-js/2.1400.0 promise"
	case 3:
		return "aws-sdk-rust/1.0.0 linux/x86_64"
	default:
		return fmt.Sprintf("Boto3/1.28.%d Python/3.11.%d Linux/5.15",
			10+rng.Intn(20), 1+rng.Intn(5))
	}
}

// humanUserAgents builds a pool of 2-4 distinct browser agents. The pool is
// sorted then the primary slot is randomized so the sticky-session draw in
// the sequencer sees a stable but varied first entry.
func humanUserAgents(rng *rand.Rand) []string {
	target := 2 + rng.Intn(3)
	seen := make(map[string]bool)
	for len(seen) < target {
		seen[randomHumanUserAgent(rng)] = true
	}
	return sortedPool(rng, seen)
}

func serviceUserAgents(rng *rand.Rand) []string {
	pool := []string{randomServiceUserAgent(rng)}
	if rng.Float64() < 0.2 {
		if other := randomServiceUserAgent(rng); other != pool[0] {
			pool = append(pool, other)
		}
	}
	return pool
}

func humanSourceIPs(rng *rand.Rand) []string {
	target := 1 + rng.Intn(3)
	seen := make(map[string]bool)
	for len(seen) < target {
		seen[randomPublicIP(rng)] = true
	}
	return sortedPool(rng, seen)
}

func serviceSourceIPs(rng *rand.Rand) []string {
	pool := []string{randomPrivateIP(rng)}
	if rng.Float64() < 0.1 {
		if other := randomPrivateIP(rng); other != pool[0] {
			pool = append(pool, other)
		}
	}
	return pool
}

func sortedPool(rng *rand.Rand, seen map[string]bool) []string {
	pool := make([]string, 0, len(seen))
	for v := range seen {
		pool = append(pool, v)
	}
	sort.Strings(pool)
	if len(pool) > 1 {
		idx := rng.Intn(len(pool))
		pool[0], pool[idx] = pool[idx], pool[0]
	}
	return pool
}
