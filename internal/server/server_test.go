package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/auditly/internal/archive"
	"github.com/zombor/auditly/internal/catalog"
	"github.com/zombor/auditly/internal/comparison"
	"github.com/zombor/auditly/internal/metadata"
	"github.com/zombor/auditly/internal/upload"
	"github.com/zombor/auditly/internal/workflow"
)

var _ = Describe("Server", func() {
	var (
		client      *mockClient
		db          *archive.BoltDB
		history     Archive
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(Config{
			Catalog:   catalog.Default(),
			Client:    client,
			Archive:   history,
			BasicAuth: auth,
		}, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		routeAll(ghttpServer, server.ServeHTTP)
	}

	BeforeEach(func() {
		tmpDir := GinkgoT().TempDir()
		var err error
		db, err = archive.NewBoltDB(filepath.Join(tmpDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		store, err := archive.NewLocalStorage(filepath.Join(tmpDir, "returns"))
		Expect(err).NotTo(HaveOccurred())

		client = &mockClient{}
		history = archive.NewService(db, store)
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
		if db != nil {
			db.Close()
		}
	})

	url := func(path string) string {
		return ghttpServer.URL() + path
	}

	startReturn := func() returnView {
		resp, body := postEmpty(url("/api/returns"))
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		return decodeReturn(body)
	}

	// advance drives a new return up to step
	advance := func(step workflow.Step) returnView {
		view := startReturn()
		base := "/api/returns/" + view.ID
		if step >= workflow.StepUploadFront {
			resp, _ := postJSON(url(base+"/category"), map[string]string{"category": "electronics"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp, _ = postJSON(url(base+"/item"), map[string]string{"item": "Iphone"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		}
		if step >= workflow.StepUploadBack {
			client.reply(frontResponse(), nil)
			resp, _ := postFile(url(base+"/uploads/front"), "front.png", pngBytes())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		}
		if step >= workflow.StepReviewMetadata {
			client.reply(finalResponse(), nil)
			resp, _ := postFile(url(base+"/uploads/back"), "back.png", pngBytes())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		}
		if step >= workflow.StepReviewImages {
			resp, _ := postJSON(url(base+"/metadata"), metadata.Fields{Input1: "SO-1", Input2: "Ann", Input3: "a", Input4: "b"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		}
		if step >= workflow.StepShowResult {
			resp, _ := postEmpty(url(base + "/acknowledge"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		}
		_, body := get(url(base))
		return decodeReturn(body)
	}

	Describe("catalog", func() {
		It("should list every category", func() {
			resp, body := get(url("/api/catalog/categories"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var categories []catalog.Category
			Expect(json.Unmarshal(body, &categories)).To(Succeed())
			Expect(categories).To(HaveLen(4))
		})

		It("should search categories", func() {
			_, body := get(url("/api/catalog/categories?q=KIT"))
			var categories []catalog.Category
			Expect(json.Unmarshal(body, &categories)).To(Succeed())
			Expect(categories).To(Equal([]catalog.Category{{Value: "kitchen", Label: "Kitchen"}}))
		})

		It("should filter items by category", func() {
			_, body := get(url("/api/catalog/items?category=furniture"))
			var items []catalog.Item
			Expect(json.Unmarshal(body, &items)).To(Succeed())
			Expect(items).To(HaveLen(2))
			Expect(items[0].Value).To(Equal("Table"))
			Expect(items[1].Value).To(Equal("Chair"))
		})

		It("should search within a category", func() {
			_, body := get(url("/api/catalog/items?category=electronics&q=wat"))
			var items []catalog.Item
			Expect(json.Unmarshal(body, &items)).To(Succeed())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Value).To(Equal("Watch"))
		})

		It("should return an empty array for an unknown category", func() {
			_, body := get(url("/api/catalog/items?category=garden"))
			Expect(string(body)).To(MatchJSON(`[]`))
		})
	})

	Describe("handleStartReturn", func() {
		It("should start at the first step", func() {
			view := startReturn()
			Expect(view.ID).NotTo(BeEmpty())
			Expect(view.State.Step).To(Equal(workflow.StepSelectItem))
			Expect(view.State.Items).To(BeEmpty())
			Expect(view.Uploads).To(BeEmpty())
			Expect(view.Result).To(BeEmpty())
		})

		It("should lay out the six-stage progress", func() {
			view := startReturn()
			Expect(view.Progress).To(HaveLen(6))
			Expect(view.Progress[0].Status).To(Equal(workflow.StageActive))
			Expect(view.Progress[0].Label).To(Equal("Select a device"))
			Expect(view.Progress[5].Status).To(Equal(workflow.StagePending))
		})

		It("should keep returns independent", func() {
			first := startReturn()
			second := startReturn()
			Expect(first.ID).NotTo(Equal(second.ID))

			resp, _ := postJSON(url("/api/returns/"+first.ID+"/category"), map[string]string{"category": "kitchen"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			_, body := get(url("/api/returns/" + second.ID))
			Expect(decodeReturn(body).State.Category).To(BeEmpty())
		})
	})

	Describe("handleGetReturn", func() {
		When("the return does not exist", func() {
			It("should return status Not Found", func() {
				resp, _ := get(url("/api/returns/missing"))
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("selecting an item", func() {
		var id string

		BeforeEach(func() {
			id = startReturn().ID
		})

		It("should store the filtered items for the category", func() {
			resp, body := postJSON(url("/api/returns/"+id+"/category"), map[string]string{"category": "appliances"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			view := decodeReturn(body)
			Expect(view.State.Category).To(Equal("appliances"))
			Expect(view.State.Items).To(HaveLen(2))
			Expect(view.State.Step).To(Equal(workflow.StepSelectItem))
		})

		It("should move to the front upload", func() {
			postJSON(url("/api/returns/"+id+"/category"), map[string]string{"category": "electronics"})
			resp, body := postJSON(url("/api/returns/"+id+"/item"), map[string]string{"item": "Camera"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			view := decodeReturn(body)
			Expect(view.State.Item).To(Equal("Camera"))
			Expect(view.State.Step).To(Equal(workflow.StepUploadFront))
			Expect(view.Progress[0].Status).To(Equal(workflow.StageCompleted))
			Expect(view.Progress[1].Status).To(Equal(workflow.StageActive))
		})

		When("no category was chosen", func() {
			It("should return status Bad Request", func() {
				resp, body := postJSON(url("/api/returns/"+id+"/item"), map[string]string{"item": "Camera"})
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				errResp := decodeError(body)
				Expect(errResp.Error).To(ContainSubstring("no category selected"))
				Expect(errResp.Return.State.Step).To(Equal(workflow.StepSelectItem))
			})
		})

		When("the item is in another category", func() {
			It("should return status Bad Request", func() {
				postJSON(url("/api/returns/"+id+"/category"), map[string]string{"category": "kitchen"})
				resp, _ := postJSON(url("/api/returns/"+id+"/item"), map[string]string{"item": "Camera"})
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(url("/api/returns/"+id+"/category"), "application/json", nil)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("uploads", func() {
		var (
			view returnView
			base string
		)

		BeforeEach(func() {
			view = advance(workflow.StepUploadFront)
			base = "/api/returns/" + view.ID
		})

		It("should upload the front and advance", func() {
			client.reply(frontResponse(), nil)
			resp, body := postFile(url(base+"/uploads/front"), "front.png", pngBytes())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			view := decodeReturn(body)
			Expect(view.State.Step).To(Equal(workflow.StepUploadBack))
			Expect(view.State.Images.Front).To(Equal("/highlighted/front.jpg"))
			Expect(view.Uploads).To(HaveKey("front"))
			Expect(view.Uploads["front"].Status).To(Equal(upload.StatusSucceeded))
			Expect(client.calls).To(Equal([]comparison.Type{comparison.TypeFront}))
		})

		It("should preview a file and submit it later", func() {
			resp, body := postFile(url(base+"/uploads/front/preview"), "front.png", pngBytes())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var info upload.Info
			Expect(json.Unmarshal(body, &info)).To(Succeed())
			Expect(info.Status).To(Equal(upload.StatusIdle))
			Expect(info.Filename).To(Equal("front.png"))
			Expect(info.Preview).To(HavePrefix("data:image/png;base64,"))
			Expect(client.calls).To(BeEmpty())

			client.reply(frontResponse(), nil)
			resp, body = postEmpty(url(base + "/uploads/front"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeReturn(body).State.Step).To(Equal(workflow.StepUploadBack))
		})

		When("no file was selected", func() {
			It("should return status Bad Request without contacting the service", func() {
				resp, body := postEmpty(url(base + "/uploads/front"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decodeError(body).Error).To(Equal(upload.ErrNoFileSelected.Error()))
				Expect(client.calls).To(BeEmpty())
			})
		})

		When("the file is not an image", func() {
			It("should return status Bad Request", func() {
				resp, _ := postFile(url(base+"/uploads/front/preview"), "notes.txt", []byte("plain text"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the side is not the current step", func() {
			It("should return status Conflict", func() {
				resp, body := postFile(url(base+"/uploads/back"), "back.png", pngBytes())
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
				Expect(decodeError(body).Return.State.Step).To(Equal(workflow.StepUploadFront))
				Expect(client.calls).To(BeEmpty())
			})
		})

		When("the side is unknown", func() {
			It("should return status Not Found", func() {
				resp, _ := postFile(url(base+"/uploads/left"), "left.png", pngBytes())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})

		When("the comparison service fails", func() {
			It("should return status Bad Gateway and keep the step", func() {
				client.reply(nil, comparison.ErrUploadFailed)
				resp, body := postFile(url(base+"/uploads/front"), "front.png", pngBytes())
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				errResp := decodeError(body)
				Expect(errResp.Return.State.Step).To(Equal(workflow.StepUploadFront))
				Expect(errResp.Return.Uploads["front"].Status).To(Equal(upload.StatusFailed))
				Expect(errResp.Return.Uploads["front"].Preview).To(BeEmpty())
			})
		})

		When("the front upload comes back with a verdict", func() {
			It("should return status Conflict and keep the step", func() {
				client.reply(finalResponse(), nil)
				resp, body := postFile(url(base+"/uploads/front"), "front.png", pngBytes())
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
				Expect(decodeError(body).Return.State.Step).To(Equal(workflow.StepUploadFront))
			})
		})
	})

	Describe("metadata", func() {
		var base string

		BeforeEach(func() {
			base = "/api/returns/" + advance(workflow.StepReviewMetadata).ID
		})

		It("should reject missing fields with the field errors", func() {
			resp, body := postJSON(url(base+"/metadata"), metadata.Fields{Input2: "x", Input3: "  ", Input4: "y"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			errResp := decodeError(body)
			Expect(errResp.Errors).To(Equal(metadata.Errors{
				"input1": "Input 1 is required.",
				"input3": "Input 3 is required.",
			}))
			Expect(errResp.Return.State.Step).To(Equal(workflow.StepReviewMetadata))
			Expect(errResp.Return.State.Errors).To(HaveLen(2))
		})

		It("should clear one field's error on focus", func() {
			postJSON(url(base+"/metadata"), metadata.Fields{})
			resp, body := postEmpty(url(base + "/focus/input2"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			errs := decodeReturn(body).State.Errors
			Expect(errs).To(HaveLen(3))
			Expect(errs).NotTo(HaveKey("input2"))
		})

		It("should reject focus on an unknown field", func() {
			resp, _ := postEmpty(url(base + "/focus/input9"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should advance when every field is filled", func() {
			resp, body := postJSON(url(base+"/metadata"), metadata.Fields{Input1: " SO-1 ", Input2: "Ann", Input3: "a", Input4: "b"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			view := decodeReturn(body)
			Expect(view.State.Step).To(Equal(workflow.StepReviewImages))
			Expect(view.State.Form.Input1).To(Equal("SO-1"))
			Expect(view.State.Errors).To(BeEmpty())
		})
	})

	Describe("completing a return", func() {
		var base string

		BeforeEach(func() {
			base = "/api/returns/" + advance(workflow.StepReviewImages).ID
		})

		It("should show the result sections", func() {
			resp, body := postEmpty(url(base + "/acknowledge"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			view := decodeReturn(body)
			Expect(view.State.Step).To(Equal(workflow.StepShowResult))
			Expect(view.Result).To(HaveLen(4))
			Expect(view.Result[0].Rows[0].Value).To(Equal("Excellent Condition"))
			Expect(view.Result[3].Title).To(Equal("Combined Results"))
		})

		It("should archive the return with its photos", func() {
			postEmpty(url(base + "/acknowledge"))

			_, body := get(url("/api/history"))
			var records []*archive.Record
			Expect(json.Unmarshal(body, &records)).To(Succeed())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Item).To(Equal("Iphone"))
			Expect(records[0].Result.Condition).To(Equal("Excellent Condition"))

			resp, photo := get(url("/api/history/" + records[0].ID + "/photos/back"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(photo).To(Equal(pngBytes()))
		})

		It("should restart from a blank state", func() {
			postEmpty(url(base + "/acknowledge"))
			resp, body := postEmpty(url(base + "/restart"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			view := decodeReturn(body)
			Expect(view.State.Step).To(Equal(workflow.StepSelectItem))
			Expect(view.State.Item).To(BeEmpty())
			Expect(view.State.Result).To(BeNil())
			Expect(view.Uploads).To(BeEmpty())
		})

		It("should refuse to restart before the result", func() {
			resp, _ := postEmpty(url(base + "/restart"))
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("history", func() {
		var recordID string

		BeforeEach(func() {
			advance(workflow.StepShowResult)
			records, err := history.ListReturns()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			recordID = records[0].ID
		})

		It("should return one record with its sections", func() {
			resp, body := get(url("/api/history/" + recordID))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var got struct {
				ID       string `json:"id"`
				Sections []struct {
					Title string `json:"title"`
				} `json:"sections"`
			}
			Expect(json.Unmarshal(body, &got)).To(Succeed())
			Expect(got.ID).To(Equal(recordID))
			Expect(got.Sections).To(HaveLen(4))
		})

		It("should return Not Found for an unknown record", func() {
			resp, _ := get(url("/api/history/missing"))
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return Not Found for an unknown side", func() {
			resp, _ := get(url("/api/history/" + recordID + "/photos/left"))
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should delete a record", func() {
			req, err := http.NewRequest(http.MethodDelete, url("/api/history/"+recordID), nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, _ = get(url("/api/history/" + recordID))
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		When("the archive fails", func() {
			BeforeEach(func() {
				history = &mockArchive{err: errArchive}
				setupServer()
			})

			It("should return status Internal Server Error", func() {
				resp, body := get(url("/api/history"))
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(string(body)).To(ContainSubstring("Internal server error"))
			})
		})
	})

	When("no archive is configured", func() {
		BeforeEach(func() {
			history = nil
			setupServer()
		})

		It("should still complete returns", func() {
			view := advance(workflow.StepShowResult)
			Expect(view.State.Step).To(Equal(workflow.StepShowResult))
		})

		It("should not serve history", func() {
			resp, _ := get(url("/api/history"))
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()
		})

		When("credentials are missing", func() {
			It("should return status Unauthorized", func() {
				resp, _ := postEmpty(url("/api/returns"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			})
		})

		When("credentials are wrong", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest(http.MethodGet, url("/api/catalog/categories"), nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:nope")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		When("credentials are correct", func() {
			It("should serve the request", func() {
				req, err := http.NewRequest(http.MethodPost, url("/api/returns"), nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("user", "pass")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			})
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, url("/api/returns"), nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("POST"))
		})
	})
})
