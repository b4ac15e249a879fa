// Package i18n implements locale-file loading and Accept-Language based
// matching. Grounded on air/i18n.go, moved out of the root package and
// decoupled from the Air/Catzilla server type: it takes an Options value
// and a small Logger interface instead of reaching into the server struct
// for its config and logging calls.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/language"
)

// Logger is the narrow logging surface I18n needs; *catzilla.Logger
// satisfies it via its Debugf/Errorf methods.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Options configures an I18n.
type Options struct {
	Enabled    bool
	LocaleRoot string
	// LocaleBase is the fallback locale used when a key is missing from
	// the request's best-matched locale.
	LocaleBase string
}

// I18n is a locale manager that resolves the localized string for a key
// according to a request's Accept-Language header, reloading its locale
// files whenever LocaleRoot changes on disk.
type I18n struct {
	opts    Options
	log     Logger
	locales map[string]map[string]string
	matcher language.Matcher
	watcher *fsnotify.Watcher
	once    *sync.Once
}

// New returns a new I18n. It panics if the underlying file watcher cannot
// be created, matching air.newI18n's panic-on-unrecoverable-setup-failure
// behavior.
func New(opts Options, log Logger) *I18n {
	i := &I18n{
		opts:    opts,
		log:     log,
		locales: map[string]map[string]string{},
		once:    &sync.Once{},
	}

	var err error
	if i.watcher, err = fsnotify.NewWatcher(); err != nil {
		panic(fmt.Errorf("i18n: failed to build watcher: %v", err))
	}

	go func() {
		for {
			select {
			case e, ok := <-i.watcher.Events:
				if !ok {
					return
				}
				if i.opts.Enabled && i.log != nil {
					i.log.Debugf("i18n: locale file event: file=%s event=%s", e.Name, e.Op.String())
				}
				i.once = &sync.Once{}
			case err, ok := <-i.watcher.Errors:
				if !ok {
					return
				}
				if i.opts.Enabled && i.log != nil {
					i.log.Errorf("i18n: watcher error: %v", err)
				}
			}
		}
	}()

	return i
}

// Localize returns a lookup function that resolves key to its localized
// string for the given Accept-Language header values, falling back to
// LocaleBase and then to key itself.
func (i *I18n) Localize(acceptLanguage []string) func(key string) string {
	if !i.opts.Enabled {
		return func(key string) string { return key }
	}

	i.once.Do(i.load)

	t, _ := language.MatchStrings(i.matcher, acceptLanguage...)
	l := i.locales[t.String()]

	return func(key string) string {
		if v, ok := l[key]; ok {
			return v
		}
		if v, ok := i.locales[i.opts.LocaleBase][key]; ok {
			return v
		}
		return key
	}
}

func (i *I18n) load() {
	lr, err := filepath.Abs(i.opts.LocaleRoot)
	if err != nil {
		i.errorf("failed to get absolute representation of locale root: %v", err)
		return
	}

	lfns, err := filepath.Glob(filepath.Join(lr, "*.toml"))
	if err != nil {
		i.errorf("failed to get locale files: %v", err)
		return
	}

	ls := make(map[string]map[string]string, len(lfns))
	ts := make([]language.Tag, 0, len(lfns))
	for _, lfn := range lfns {
		b, err := os.ReadFile(lfn)
		if err != nil {
			i.errorf("failed to read locale file: %v", err)
			return
		}

		l := map[string]string{}
		if err := toml.Unmarshal(b, &l); err != nil {
			i.errorf("failed to unmarshal locale file: %v", err)
			return
		}

		t, err := language.Parse(strings.Replace(filepath.Base(lfn), ".toml", "", 1))
		if err != nil {
			i.errorf("failed to parse locale: %v", err)
			return
		}

		ls[t.String()] = l
		ts = append(ts, t)
	}

	i.locales = ls
	i.matcher = language.NewMatcher(ts)

	if err := i.watcher.Add(lr); err != nil {
		i.errorf("failed to watch locale files: %v", err)
	}
}

func (i *I18n) errorf(format string, args ...interface{}) {
	if i.log != nil {
		i.log.Errorf("i18n: "+format, args...)
	}
}

// Close stops the underlying file watcher.
func (i *I18n) Close() error {
	return i.watcher.Close()
}
