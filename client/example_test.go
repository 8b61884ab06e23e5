package client_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/httpflow/client"
	"github.com/adamwoolhether/httpflow/client/serialize"
)

func ExampleManager_Request() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"msg":"hello"}`)
	}))
	defer ts.Close()

	m, err := client.Build(client.WithTimeout(5*time.Second), client.WithoutAutoStart())
	if err != nil {
		fmt.Println("build error:", err)
		return
	}
	defer m.Invalidate(false)

	req, err := client.NewRequest(context.Background(), http.MethodGet, client.URL("http", ts.Listener.Addr().String(), "/"),
		client.WithAccept("application/json"),
	)
	if err != nil {
		fmt.Println("request error:", err)
		return
	}

	type message struct{ Msg string }

	r := m.Request(req).Validate()
	client.OnResponse(r, serialize.Decodable[message](), func(res client.Response[message]) {
		if res.Err != nil {
			fmt.Println("response error:", res.Err)
			return
		}
		fmt.Println(res.Value.Msg)
	})
	r.Resume()

	if err := r.Wait(context.Background()); err != nil {
		fmt.Println("wait error:", err)
	}
	// Output: hello
}

func ExampleRequest_ValidateStatus() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer ts.Close()

	m, err := client.Build(client.WithoutAutoStart())
	if err != nil {
		fmt.Println("build error:", err)
		return
	}
	defer m.Invalidate(false)

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	err = m.Request(req).ValidateStatus(http.StatusOK).Resume().Wait(context.Background())

	fmt.Println(err)
	// Output: validation failed: unacceptable status code 418
}

func ExampleURL() {
	u := client.URL("https", "api.example.com", "/v1/items",
		client.WithPort(8443),
		client.WithQueryStrings(map[string]string{"page": "2"}),
	)

	fmt.Println(u)
	// Output: https://api.example.com:8443/v1/items?page=2
}
