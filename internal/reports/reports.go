// Package reports serve relatórios PDF de uma lista fixa de diretórios.
package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotFound = errors.New("report not found")
	ErrNotPDF   = errors.New("only PDF files are allowed")
)

// Server procura o arquivo nos diretórios permitidos, na ordem dada.
type Server struct {
	Dirs   []string
	Logger *slog.Logger
}

func New(dirs []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Dirs: dirs, Logger: logger}
}

// Resolve traduz o nome (já decodificado) para um caminho dentro de um dos diretórios.
//
// O nome precisa ser um nome de arquivo puro: separadores, ".." ou bytes nulos
// dão ErrNotFound, nunca um caminho fora dos diretórios. Arquivo inexistente é
// ErrNotFound; só um arquivo existente sem extensão .pdf é ErrNotPDF.
func (s *Server) Resolve(name string) (string, error) {
	if !safeName(name) {
		return "", ErrNotFound
	}

	for _, dir := range s.Dirs {
		p := filepath.Join(dir, name)
		// o caminho final tem que continuar dentro do diretório
		if filepath.Dir(p) != filepath.Clean(dir) {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			return "", ErrNotPDF
		}
		return p, nil
	}
	return "", ErrNotFound
}

func safeName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// ServeReport escreve o PDF com Content-Disposition inline e X-PDF-Pages quando
// o arquivo pode ser lido como PDF. filename é o segmento entregue pelo roteador:
// ainda escapado quando a URL tem RawPath, já decodificado quando não tem.
func (s *Server) ServeReport(w http.ResponseWriter, r *http.Request, filename string) {
	if r.URL.RawPath != "" {
		name, err := url.PathUnescape(filename)
		if err != nil {
			writeError(w, http.StatusNotFound, ErrNotFound)
			return
		}
		filename = name
	}

	path, err := s.Resolve(filename)
	switch {
	case errors.Is(err, ErrNotPDF):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusNotFound, ErrNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.Logger.Error("open report", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.Logger.Error("stat report", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	if pages, err := PageCount(f, info.Size()); err == nil {
		w.Header().Set("X-PDF-Pages", strconv.Itoa(pages))
	} else {
		s.Logger.Debug("report is not a readable PDF", "path", path, "error", err)
	}

	base := filepath.Base(path)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", base))
	http.ServeContent(w, r, base, info.ModTime(), f)
}

// PageCount lê o número de páginas. O parser pode entrar em pânico com arquivos
// corrompidos; isso vira erro.
func PageCount(f *os.File, size int64) (pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}
