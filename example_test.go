package httpflow_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/httpflow"
	"github.com/adamwoolhether/httpflow/client"
)

func ExampleNewManager() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"msg":"hello"}`)
	}))
	defer ts.Close()

	m, err := httpflow.NewManager(client.WithTimeout(5*time.Second), client.WithoutAutoStart())
	if err != nil {
		fmt.Println("build error:", err)
		return
	}
	defer m.Invalidate(false)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL, nil)
	if err != nil {
		fmt.Println("request error:", err)
		return
	}

	r := m.Request(req).
		Validate().
		ResponseJSON(func(res client.Response[any]) {
			if res.Err != nil {
				fmt.Println("response error:", res.Err)
				return
			}
			fmt.Println(res.Value.(map[string]any)["msg"])
		}).
		Resume()

	if err := r.Wait(context.Background()); err != nil {
		fmt.Println("wait error:", err)
	}
	// Output: hello
}
