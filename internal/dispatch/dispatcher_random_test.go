package dispatch

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"testing"
	"time"

	"configurablestub/internal/models"

	"github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var randomVerbs = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

type fakeText struct {
	Word     string `faker:"word"`
	Segment  string `faker:"word"`
	ID       string `faker:"uuid_digit"`
	Sentence string `faker:"sentence"`
}

func randomText(t *testing.T) fakeText {
	t.Helper()
	var text fakeText
	require.NoError(t, faker.FakeData(&text))
	return text
}

// randomRoute is one generated configuration plus the traffic sent to it
type randomRoute struct {
	verb     string
	path     string
	config   models.RouteConfig
	payload  []byte
	sent     []string
	missing  []string
	requests int
}

func generateRoute(t *testing.T, r *rand.Rand, i int) randomRoute {
	t.Helper()
	text := randomText(t)
	route := randomRoute{
		verb:     randomVerbs[r.Intn(len(randomVerbs))],
		path:     fmt.Sprintf("/%s/%s/%s", text.Word, text.Segment, text.ID),
		requests: 1 + r.Intn(5),
	}
	route.config.StatusCode = 200 + r.Intn(400)

	headers := r.Intn(4)
	for h := 0; h < headers; h++ {
		name := fmt.Sprintf("X-%s-%d-%d", randomText(t).Word, i, h)
		route.config.RequiredHeaders = append(route.config.RequiredHeaders, name)
		if r.Intn(2) == 0 {
			route.sent = append(route.sent, name)
		} else {
			route.missing = append(route.missing, name)
		}
	}

	if r.Intn(2) == 0 {
		route.payload = []byte(text.Sentence)
		route.config.Response = text.Sentence
	} else {
		route.payload = make([]byte, 1+r.Intn(64))
		r.Read(route.payload)
		route.config.Base64EncodedBinaryResponse = base64.StdEncoding.EncodeToString(route.payload)
		route.config.Response = "ignored"
	}
	return route
}

func TestDispatchRandomisedRoutes(t *testing.T) {
	seed := time.Now().UnixNano()
	t.Logf("seed %d", seed)
	faker.SetRandomSource(rand.NewSource(seed))
	r := rand.New(rand.NewSource(seed))

	for i := 0; i < 50; i++ {
		d := newTestDispatcher(t)
		route := generateRoute(t, r, i)
		key := models.NewRouteKey(route.verb, route.path)
		d.Routes.Put(key, route.config)

		for n := 0; n < route.requests; n++ {
			header := http.Header{}
			for _, name := range route.sent {
				// sent lowercase, matched regardless of case
				header[strings.ToLower(name)] = []string{"v"}
			}
			body := []byte(fmt.Sprintf(`{"n":%d}`, n))
			if r.Intn(2) == 0 {
				body = []byte(randomText(t).Sentence)
			}

			resp, err := d.Dispatch(context.Background(), Inbound{Method: route.verb, Path: route.path, Header: header, Body: body})
			require.NoError(t, err, "seed %d route %s", seed, key)

			if len(route.missing) > 0 {
				assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, "seed %d route %s", seed, key)
				assert.Equal(t, MissingHeadersPrefix+strings.Join(route.missing, ", "), string(resp.Body), "seed %d", seed)
				assert.Equal(t, OutcomeMissingHeaders, resp.Outcome)
				continue
			}
			assert.Equal(t, route.config.StatusCode, resp.StatusCode, "seed %d route %s", seed, key)
			assert.Equal(t, route.payload, resp.Body, "seed %d route %s", seed, key)
			assert.Equal(t, route.config.HasBinaryResponse(), resp.Binary)
			assert.Equal(t, OutcomeMatched, resp.Outcome)
		}

		assert.Len(t, recorded(d, key), route.requests, "seed %d route %s", seed, key)

		other := models.NewRouteKey(route.verb, route.path+"/unconfigured")
		resp, err := d.Dispatch(context.Background(), Inbound{Method: route.verb, Path: route.path + "/unconfigured", Header: http.Header{}})
		require.NoError(t, err)
		assert.Equal(t, NoRouteBody, string(resp.Body))
		assert.Len(t, recorded(d, other), 1)
		assert.Len(t, recorded(d, key), route.requests)
	}
}
