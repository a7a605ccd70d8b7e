package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/mediakeeper/internal/server/models"
	"github.com/dmitrijs2005/mediakeeper/internal/server/services"
	"github.com/dmitrijs2005/mediakeeper/internal/server/upload"
)

const profilePhotoField = "profilePhoto"

type userResponse struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Bio          string    `json:"bio,omitempty"`
	ProfilePhoto string    `json:"profilePhoto,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Bio:          u.Bio,
		ProfilePhoto: u.ProfilePhotoURL,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type createdUserResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type updateUserRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Bio      *string `json:"bio"`
	Password *string `json:"password"`
}

// CreateUser handles POST /users. The optional profile photo travels in the
// same multipart request as the account fields.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, closeFiles, err := formFiles(r.MultipartForm, profilePhotoField)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer closeFiles()

	var photo *upload.File
	switch len(files) {
	case 0:
	case 1:
		photo = &files[0]
	default:
		h.writeError(w, r, &upload.ValidationError{Code: upload.TooManyFiles, Message: "Too many files. Maximum allowed is 1."})
		return
	}

	in := services.NewUser{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullName"),
		Bio:      r.FormValue("bio"),
		Password: r.FormValue("password"),
	}

	user, tokens, err := h.users.CreateUser(r.Context(), in, photo)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, "User registered successfully", createdUserResponse{
		User:         toUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "User fetched successfully", toUserResponse(user))
}

// UpdateUser handles PATCH /users/{id} with a JSON body.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, badRequest(msgBadJSON))
		return
	}

	user, err := h.users.UpdateUser(r.Context(), chi.URLParam(r, "id"), services.UserUpdate{
		FullName: req.FullName,
		Email:    req.Email,
		Bio:      req.Bio,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "User updated successfully", toUserResponse(user))
}

// UpdateProfilePhoto handles PUT /users/{id}/profile-photo.
func (h *Handler) UpdateProfilePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files, closeFiles, err := formFiles(r.MultipartForm, profilePhotoField)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer closeFiles()

	switch len(files) {
	case 0:
		h.writeError(w, r, badRequest(msgNoFile))
		return
	case 1:
	default:
		h.writeError(w, r, &upload.ValidationError{Code: upload.TooManyFiles, Message: "Too many files. Maximum allowed is 1."})
		return
	}

	user, err := h.users.UpdateProfilePhoto(r.Context(), chi.URLParam(r, "id"), files[0])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Profile photo updated successfully", toUserResponse(user))
}

func (h *Handler) RemoveProfilePhoto(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.RemoveProfilePhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "Profile photo removed successfully", toUserResponse(user))
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "User deleted successfully", nil)
}
