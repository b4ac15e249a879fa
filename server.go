package catzilla

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/catzilla-org/catzilla/internal/listener"
)

// Serve starts the server, grounded on air.Air.Serve: it builds the
// net/http.Server from Config, optionally layers TLS/ACME autocert and
// HTTP/2 (falling back to h2c when no TLS certificate is configured) over
// a PROXY-protocol-aware listener, and blocks serving requests until Close
// or Shutdown is called.
func (c *Catzilla) Serve() error {
	addr := net.JoinHostPort(c.Config.Host, fmt.Sprintf("%d", c.Config.Port))

	c.server.Addr = addr
	c.server.Handler = c
	c.server.ReadTimeout = c.Config.ReadTimeout
	c.server.WriteTimeout = c.Config.WriteTimeout
	c.server.MaxHeaderBytes = c.Config.MaxHeaderBytes

	var tlsConfig *tls.Config

	if c.Config.TLSCertFile != "" && c.Config.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.Config.TLSCertFile, c.Config.TLSKeyFile)
		if err != nil {
			return err
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	if c.Config.ACMEEnabled {
		acm := &autocert.Manager{
			Prompt:      autocert.AcceptTOS,
			Cache:       autocert.DirCache("acme-cache"),
			HostPolicy:  autocert.HostWhitelist(c.Config.Host),
			Client:      &acme.Client{DirectoryURL: c.Config.ACMEDirURL},
		}

		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		tlsConfig.GetCertificate = acm.GetCertificate
	}

	if tlsConfig != nil {
		for _, proto := range []string{"h2", "http/1.1"} {
			if !containsString(tlsConfig.NextProtos, proto) {
				tlsConfig.NextProtos = append(tlsConfig.NextProtos, proto)
			}
		}
	} else if c.Config.HTTP2Enabled {
		h2s := &http2.Server{}
		c.server.Handler = h2c.NewHandler(c.server.Handler, h2s)
	}

	l := listener.New(listener.Options{})
	if err := l.Listen(c.server.Addr); err != nil {
		return err
	}
	defer l.Close()

	c.addressMap[l.Addr().String()] = 0
	defer delete(c.addressMap, l.Addr().String())

	var netListener net.Listener = l
	if tlsConfig != nil {
		netListener = tls.NewListener(netListener, tlsConfig)
	}

	shutdownJobRunOnce := sync.Once{}
	c.server.RegisterOnShutdown(func() {
		c.shutdownJobMutex.Lock()
		defer c.shutdownJobMutex.Unlock()
		shutdownJobRunOnce.Do(func() {
			wg := sync.WaitGroup{}
			for _, job := range c.shutdownJobs {
				if job == nil {
					continue
				}
				wg.Add(1)
				go func(job func()) {
					defer wg.Done()
					job()
				}(job)
			}
			wg.Wait()
			close(c.shutdownJobDone)
		})
	})

	if c.Config.DebugMode {
		c.Logger.Debugf("catzilla: serving in debug mode on %s", c.server.Addr)
	}

	c.Tasks.Start()

	return c.server.Serve(netListener)
}

// Close closes the server immediately, without waiting for active
// connections to finish.
func (c *Catzilla) Close() error {
	c.Tasks.Stop(false)
	return c.server.Close()
}

// Shutdown gracefully shuts down the server without interrupting active
// connections, then runs every registered shutdown job, mirroring
// air.Air.Shutdown.
func (c *Catzilla) Shutdown(ctx context.Context) error {
	err := c.server.Shutdown(ctx)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.shutdownJobDone:
	}

	c.Tasks.Stop(true)

	return err
}

// AddShutdownJob registers f to run exactly once when Shutdown is called,
// returning an id usable with RemoveShutdownJob.
func (c *Catzilla) AddShutdownJob(f func()) int {
	c.shutdownJobMutex.Lock()
	defer c.shutdownJobMutex.Unlock()
	c.shutdownJobs = append(c.shutdownJobs, f)
	return len(c.shutdownJobs) - 1
}

// RemoveShutdownJob removes the shutdown job registered under id.
func (c *Catzilla) RemoveShutdownJob(id int) {
	c.shutdownJobMutex.Lock()
	defer c.shutdownJobMutex.Unlock()
	if id >= 0 && id < len(c.shutdownJobs) {
		c.shutdownJobs[id] = nil
	}
}

// Addresses returns every TCP address the server is actually listening on.
func (c *Catzilla) Addresses() []string {
	if len(c.addressMap) == 0 {
		return nil
	}

	as := make([]string, 0, len(c.addressMap))
	for a := range c.addressMap {
		as = append(as, a)
	}

	sort.Slice(as, func(i, j int) bool { return c.addressMap[as[i]] < c.addressMap[as[j]] })

	return as
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
