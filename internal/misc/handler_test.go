package misc_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2beens/fitsession/internal/misc"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHandler_Routes(t *testing.T) {
	router := mux.NewRouter()
	misc.NewHandler("v1.2.3").SetupRoutes(router)

	for _, tc := range []struct {
		path     string
		wantBody string
	}{
		{path: "/", wantBody: "I'm OK, thanks ;)"},
		{path: "/ping", wantBody: `{"ping":"pong"}`},
		{path: "/version", wantBody: "v1.2.3"},
	} {
		req, err := http.NewRequest("GET", tc.path, nil)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, tc.path)
		assert.Equal(t, tc.wantBody, rr.Body.String(), tc.path)
	}
}
