package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/smartystreets/goconvey/convey"
)

func TestDocRoute(t *testing.T) {
	convey.Convey("Given the docs route", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		serve := func(method string, hdr map[string]string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, DocPath, http.NoBody)
			for k, v := range hdr {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			return w
		}

		convey.Convey("When the document is fetched", func() {
			w := serve(http.MethodGet, nil)

			convey.Convey("Then it is served as YAML with an ETag", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
				convey.So(w.Header().Get("ETag"), convey.ShouldEqual, docETag)
				convey.So(w.Body.Bytes(), convey.ShouldResemble, OpenAPI)
			})
		})

		convey.Convey("When the client already holds the current version", func() {
			w := serve(http.MethodGet, map[string]string{"If-None-Match": docETag})

			convey.Convey("Then nothing is resent", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusNotModified)
				convey.So(w.Body.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When HEAD is used", func() {
			w := serve(http.MethodHead, nil)

			convey.Convey("Then only headers are sent", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When another method is used", func() {
			w := serve(http.MethodPost, nil)

			convey.Convey("Then it is refused", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusMethodNotAllowed)
				convey.So(w.Header().Get("Allow"), convey.ShouldEqual, "GET, HEAD")
			})
		})
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded document", t, func() {
		doc, err := yaml.Parser().Unmarshal(OpenAPI)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then it documents every route", func() {
			convey.So(doc["openapi"], convey.ShouldStartWith, "3.")
			paths, ok := doc["paths"].(map[string]interface{})
			convey.So(ok, convey.ShouldBeTrue)
			for _, p := range []string{"/requirements", "/plans", "/plans/{plan_id}", "/rules", "/healthz", "/stats", DocPath} {
				convey.So(paths, convey.ShouldContainKey, p)
			}
		})
	})
}
