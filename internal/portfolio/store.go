package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store guarda o documento atual e troca-o inteiro a cada recarga.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	doc *Document
}

// NewStore carrega path. Falha de leitura não impede o servidor de subir: fica o
// documento vazio e um aviso no log.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger, doc: Empty()}
	if err := s.Reload(); err != nil {
		logger.Warn("could not load portfolio at startup", "path", path, "error", err)
	}
	return s
}

// NewStaticStore serve um documento fixo, sem arquivo.
func NewStaticStore(doc *Document) *Store {
	if doc == nil {
		doc = Empty()
	}
	return &Store{logger: slog.Default(), doc: doc}
}

func (s *Store) Current() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Reload relê o arquivo; em erro o documento anterior continua valendo.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	doc, err := Load(s.path)
	if err != nil {
		return err
	}
	for _, w := range doc.Warnings() {
		s.logger.Warn("portfolio field ignored for chat context", "path", s.path, "detail", w)
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

const watchDebounce = 100 * time.Millisecond

// Watch recarrega o documento quando o arquivo muda. Observa o diretório (editores
// costumam trocar o arquivo por rename) e agrupa eventos próximos. Bloqueia até ctx acabar.
func (s *Store) Watch(ctx context.Context) error {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve portfolio path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create portfolio watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	s.logger.Info("watching portfolio file", "path", abs)

	name := filepath.Base(abs)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Warn("portfolio reload failed, keeping previous document", "error", err)
					return
				}
				s.logger.Info("portfolio reloaded", "path", abs)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("portfolio watcher error", "error", err)
		}
	}
}
