package content

type CreateThreadRequest struct {
	CourseID string `json:"course_id" validate:"required,max=255"`
	Title    string `json:"title" validate:"required,max=500"`
	Body     string `json:"body" validate:"required,max=20000"`
}

type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,max=20000"`
}

type ListFilter struct {
	CourseID string
	Limit    int
	Offset   int
}
