package overlay

import (
	"context"
	"io/fs"
	"math/rand"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/gologme/log"
)

type Peer struct {
	URL     url.URL
	Online  bool
	Latency time.Duration
}

const publicPeersRepo = "https://github.com/yggdrasil-network/public-peers"

var peerURLPattern = regexp.MustCompile(`(?m)(tcp|tls)://[^\s` + "`" + `]+`)

// parsePeerList extracts tcp:// and tls:// URLs from free text.
func parsePeerList(text string) []url.URL {
	var peers []url.URL
	for _, m := range peerURLPattern.FindAllString(text, -1) {
		u, err := url.Parse(strings.TrimSpace(m))
		if err != nil {
			continue
		}
		peers = append(peers, *u)
	}
	return peers
}

func readPeersFile(path string) []url.URL {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return parsePeerList(string(data))
}

// PublicPeers clones the public-peers repository and collects the peer URLs
// listed in it. When cloning fails it falls back to fallbackFile.
func PublicPeers(ctx context.Context, fallbackFile string, logger *log.Logger) []url.URL {
	tempDir, err := os.MkdirTemp("", "public-peers-*")
	if err != nil {
		return readPeersFile(fallbackFile)
	}
	defer os.RemoveAll(tempDir)

	_, err = git.PlainCloneContext(ctx, tempDir, false, &git.CloneOptions{URL: publicPeersRepo, Depth: 1})
	if err != nil {
		logger.Warnf("fetch public peers: %v", err)
		return readPeersFile(fallbackFile)
	}

	var peers []url.URL
	_ = filepath.WalkDir(tempDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debugf("walk error: %v", err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") || d.Name() == "README.md" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		peers = append(peers, parsePeerList(string(data))...)
		return nil
	})

	if len(peers) == 0 {
		return readPeersFile(fallbackFile)
	}
	return peers
}

// ClosestPeers returns up to n online peers ordered by dial latency.
func ClosestPeers(peerList []url.URL, n int) []url.URL {
	var result []url.URL
	onlinePeers := testPeers(peerList)

	x := 0
	for _, p := range onlinePeers {
		if p.Online {
			onlinePeers[x] = p
			x++
		}
	}
	onlinePeers = onlinePeers[:x]

	sort.Slice(onlinePeers, func(i, j int) bool {
		return onlinePeers[i].Latency < onlinePeers[j].Latency
	})

	for i := 0; i < len(onlinePeers) && len(result) < n; i++ {
		result = append(result, onlinePeers[i].URL)
	}
	return result
}

// RandomPick picks n distinct peers from a list.
func RandomPick(peerList []url.URL, n int) []url.URL {
	if len(peerList) <= n {
		return peerList
	}

	var res []url.URL
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, i := range r.Perm(len(peerList))[:n] {
		res = append(res, peerList[i])
	}
	return res
}

const dialTimeout = 3 * time.Second

func testPeers(peers []url.URL) []Peer {
	var res []Peer
	results := make(chan Peer)

	for _, p := range peers {
		go testPeer(p, results)
	}
	for range peers {
		res = append(res, <-results)
	}
	return res
}

func testPeer(peer url.URL, results chan Peer) {
	p := Peer{URL: peer}
	if peer.Scheme != "tcp" && peer.Scheme != "tls" {
		results <- p
		return
	}

	t0 := time.Now()
	conn, err := net.DialTimeout("tcp", peer.Host, dialTimeout)
	if err == nil {
		p.Latency = time.Since(t0)
		p.Online = true
		conn.Close()
	}
	results <- p
}

// resolvePeers expands the "auto" setting into concrete peer URIs.
func resolvePeers(ctx context.Context, cfg Config, logger *log.Logger) []string {
	if !cfg.autoPeers() {
		return cfg.Peers
	}
	var urls []string
	for _, u := range RandomPick(ClosestPeers(PublicPeers(ctx, cfg.PeersFile, logger), 20), 3) {
		urls = append(urls, u.String())
	}
	return urls
}
