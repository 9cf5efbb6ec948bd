package services

import (
	"chat-presence/auth"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Signup(ctx context.Context, req auth.SignupRequest) (domain.Identity, auth.Credential, error)
	Login(ctx context.Context, req auth.LoginRequest) (domain.Identity, auth.Credential, error)
	UpdateProfile(ctx context.Context, identityID, profilePic string) (domain.Identity, error)
}

type AuthService struct {
	log            *slog.Logger
	userRepository repositories.IUserRepository
	issuer         *auth.Issuer
}

func NewAuthService(log *slog.Logger, repo repositories.IUserRepository, issuer *auth.Issuer) *AuthService {
	return &AuthService{log: log, userRepository: repo, issuer: issuer}
}

func (s *AuthService) Signup(ctx context.Context, req auth.SignupRequest) (domain.Identity, auth.Credential, error) {
	// Business rules are checked before any expensive cryptographic operation.
	if err := auth.ValidateSignup(req); err != nil {
		return domain.Identity{}, auth.Credential{}, err
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.Identity{}, auth.Credential{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(ctx, req.FullName, req.Email, hashedPassword)
	if err != nil {
		return domain.Identity{}, auth.Credential{}, err
	}

	credential, err := s.issuer.Issue(user.ID)
	if err != nil {
		return domain.Identity{}, auth.Credential{}, err
	}
	s.log.Info("User signed up", "user_id", user.ID)
	return user.Identity(), credential, nil
}

func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (domain.Identity, auth.Credential, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return domain.Identity{}, auth.Credential{}, err
	}

	user, err := s.userRepository.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if !stderrors.Is(err, errors.ErrIdentityNotFound) {
			return domain.Identity{}, auth.Credential{}, err
		}
		// Same answer as a wrong password, so emails cannot be enumerated.
		return domain.Identity{}, auth.Credential{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(req.Password, user.PasswordHash)
	if err != nil || !match {
		return domain.Identity{}, auth.Credential{}, errors.ErrInvalidCredentials
	}

	credential, err := s.issuer.Issue(user.ID)
	if err != nil {
		return domain.Identity{}, auth.Credential{}, err
	}
	s.log.Info("User logged in", "user_id", user.ID)
	return user.Identity(), credential, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, identityID, profilePic string) (domain.Identity, error) {
	if profilePic == "" {
		return domain.Identity{}, fmt.Errorf("%w: profile pic is required", errors.ErrInvalidRequest)
	}
	if _, err := ValidateImage(profilePic); err != nil {
		return domain.Identity{}, err
	}
	return s.userRepository.UpdateProfilePic(ctx, identityID, profilePic)
}
