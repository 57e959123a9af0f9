package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Elections *ElectionHandler
	Votes     *VoteHandler
	Tokens    *TokenHandler
	Proxies   *ProxyHandler
	Integrity *IntegrityHandler
}

// NewHandler builds the API router. Token redemption stays outside the
// authenticated group: anonymous voters hold a ballot token, not a session.
func NewHandler(h Handlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})

		r.Route("/ballots", func(r chi.Router) {
			r.Get("/", h.Tokens.Peek)
			r.Post("/votes", h.Tokens.RedeemSingle)
			r.Post("/redeem", h.Tokens.RedeemWholeBallot)
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticator(jwtSecret))

			r.Route("/elections", func(r chi.Router) {
				r.Post("/", h.Elections.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Elections.Get)
					r.Delete("/", h.Elections.Delete)

					r.Post("/candidates", h.Elections.Nominate)
					r.Get("/candidates", h.Elections.Candidates)
					r.Post("/candidates/{candidateID}/accept", h.Elections.AcceptNomination)

					r.Post("/open", h.Elections.Open)
					r.Post("/close", h.Elections.Close)
					r.Post("/rollback", h.Elections.Rollback)
					r.Post("/destroy-salt", h.Elections.DestroySalt)
					r.Post("/check-in", h.Elections.CheckIn)

					r.Get("/results", h.Elections.Results)
					r.Get("/stats", h.Elections.Stats)

					r.Get("/eligibility", h.Votes.CheckEligibility)
					r.Post("/votes", h.Votes.CastVote)
					r.Post("/proxy-votes", h.Votes.CastProxyVote)

					r.Post("/tokens", h.Tokens.Issue)
					r.Post("/tokens/issue-all", h.Tokens.IssueAll)

					r.Post("/proxies", h.Proxies.Grant)
					r.Delete("/proxies/{authorizationID}", h.Proxies.Revoke)

					r.Get("/integrity/signatures", h.Integrity.VerifySignatures)
					r.Get("/integrity/forensics", h.Integrity.Forensics)
				})
			})

			r.Delete("/votes/{voteID}", h.Votes.DeleteVote)
		})
	})

	return r
}
