package server

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/Heidric/digest.git/internal/db"
	"github.com/Heidric/digest.git/internal/services"
)

func exampleServer() *Server {
	service, err := services.NewDigestService(db.NewMemStore(), 16)
	if err != nil {
		panic(err)
	}
	return NewServer(":0", service, testOptions())
}

// ExampleNewServer_compute shows the anonymous digest endpoint POST /digest.
func ExampleNewServer_compute() {
	srv := exampleServer()

	req := httptest.NewRequest(http.MethodPost, "/digest", strings.NewReader("abc"))
	rec := httptest.NewRecorder()
	srv.Srv.Handler.ServeHTTP(rec, req)
	fmt.Println("POST status:", rec.Code)
	body, _ := io.ReadAll(rec.Body)
	fmt.Println(strings.TrimSpace(string(body)))

	// Output:
	// POST status: 200
	// {"sha256":"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad","size":3}
}

// ExampleNewServer_verify registers a body under a name and verifies another.
func ExampleNewServer_verify() {
	srv := exampleServer()

	req := httptest.NewRequest(http.MethodPut, "/digest/greeting", strings.NewReader("hello"))
	rec := httptest.NewRecorder()
	srv.Srv.Handler.ServeHTTP(rec, req)
	fmt.Println("PUT status:", rec.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/verify/greeting", strings.NewReader("hallo"))
	rec2 := httptest.NewRecorder()
	srv.Srv.Handler.ServeHTTP(rec2, req2)
	fmt.Println("Match:", strings.Contains(rec2.Body.String(), `"match":true`))

	// Output:
	// PUT status: 201
	// Match: false
}

// ExampleNewServer_ping shows the health endpoint GET /ping.
func ExampleNewServer_ping() {
	srv := exampleServer()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	srv.Srv.Handler.ServeHTTP(rec, req)
	fmt.Println(rec.Code)

	// Output:
	// 200
}
