package service

import (
	"context"
	"fmt"

	"github.com/naijaprep/cbt-backend/internal/model"
	"github.com/naijaprep/cbt-backend/internal/repository"
	"github.com/naijaprep/cbt-backend/internal/response"
)

// StudentService handles student account business logic.
type StudentService struct {
	studentRepo *repository.StudentRepository
	authService *AuthService
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo *repository.StudentRepository, authService *AuthService) *StudentService {
	return &StudentService{studentRepo: studentRepo, authService: authService}
}

// Register creates a new student account on the FREE plan.
func (s *StudentService) Register(ctx context.Context, req *model.CreateStudentRequest) (*model.Student, error) {
	hash, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	student := &model.Student{
		Email:        req.Email,
		Name:         req.Name,
		Phone:        req.Phone,
		State:        req.State,
		PasswordHash: hash,
		Plan:         model.PlanFree,
	}
	if err := s.studentRepo.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// GetByID retrieves a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	return s.studentRepo.GetByID(ctx, id)
}

// GetByEmail retrieves a student by their unique email.
func (s *StudentService) GetByEmail(ctx context.Context, email string) (*model.Student, error) {
	return s.studentRepo.GetByEmail(ctx, email)
}

// List retrieves students for the admin panel with pagination and an
// optional plan filter.
func (s *StudentService) List(ctx context.Context, plan *model.Plan, page, perPage int) ([]model.Student, *response.Pagination, error) {
	page, perPage = clampPage(page, perPage)
	students, total, err := s.studentRepo.ListPaginated(ctx, plan, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, response.NewPagination(page, perPage, total), nil
}

// Update modifies a student's profile; a non-empty password is rehashed.
func (s *StudentService) Update(ctx context.Context, id int, req *model.UpdateStudentRequest) (*model.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	student.Email = req.Email
	student.Name = req.Name
	student.Phone = req.Phone
	student.State = req.State
	if err := s.studentRepo.Update(ctx, student); err != nil {
		return nil, err
	}

	if req.Password != "" {
		hash, err := s.authService.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.studentRepo.UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
	}
	return student, nil
}

// Delete removes a student account.
func (s *StudentService) Delete(ctx context.Context, id int) error {
	return s.studentRepo.Delete(ctx, id)
}
