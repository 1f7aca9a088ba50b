package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"binary-processor/internal/domain/invoice"
)

func ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invoices/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/invoices/")
		_ = json.NewEncoder(w).Encode(invoice.Invoice{ID: id})
	})
	return http.ListenAndServe(addr, mux)
}
