package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-listings/internal/users"
	"github.com/goliatone/go-listings/listing"
	"github.com/goliatone/go-listings/query"
)

const healthTimeout = 2 * time.Second

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Listings

func (h *handler) searchListings(w http.ResponseWriter, r *http.Request) {
	page, err := h.listings.Search(r.Context(), query.ParamsFromValues(r.URL.Query()))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *handler) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *handler) createListing(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	l, err := h.listings.Create(r.Context(), requester(r), raw)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

func (h *handler) updateListing(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	l, err := h.listings.Update(r.Context(), requester(r), chi.URLParam(r, "id"), raw)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.listings.Delete(r.Context(), requester(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Deleted")
}

// Accounts

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var c users.Credentials
	if err := decodeInto(r, &c); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	u, err := h.accounts.Register(r.Context(), c)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered",
		"userId":  u.ID,
	})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var c users.Credentials
	if err := decodeInto(r, &c); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	token, err := h.accounts.Login(r.Context(), c)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Favorites

func (h *handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.accounts.Favorites(r.Context(), requester(r))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, favs)
}

func (h *handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ListingID string `json:"propertyId"`
	}
	if err := decodeInto(r, &body); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.accounts.AddFavorite(r.Context(), requester(r), body.ListingID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Added to favorites")
}

func (h *handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.RemoveFavorite(r.Context(), requester(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Removed from favorites")
}

// Recommendations

type userRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type listingRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	var req users.RecommendRequest
	if err := decodeInto(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	res, err := h.accounts.Recommend(r.Context(), requester(r), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Message   string     `json:"message"`
		Recipient userRef    `json:"recipient"`
		Listing   listingRef `json:"property"`
	}{
		Message:   "Property recommended successfully",
		Recipient: userRef{ID: res.Recipient.ID, Email: res.Recipient.Email},
		Listing:   listingRef{ID: res.Listing.ID, Title: res.Listing.Title},
	})
}

func (h *handler) listRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.accounts.Recommendations(r.Context(), requester(r))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if recs == nil {
		recs = []listing.Listing{}
	}
	respondJSON(w, http.StatusOK, struct {
		Recommendations []listing.Listing `json:"recommendations"`
		Count           int               `json:"count"`
	}{recs, len(recs)})
}

func (h *handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	found, err := h.accounts.SearchUsers(r.Context(), requester(r), r.URL.Query().Get("email"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	refs := make([]userRef, len(found))
	for i, u := range found {
		refs[i] = userRef{ID: u.ID, Email: u.Email}
	}
	respondJSON(w, http.StatusOK, struct {
		Users []userRef `json:"users"`
		Count int       `json:"count"`
	}{refs, len(refs)})
}
