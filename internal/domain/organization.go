package domain

// Team is an organization team used to resolve reporter affiliation.
type Team struct {
	ID   int64
	Name string
	Slug string
}

// Member is a team member login.
type Member struct {
	Login string
}

// Repository is an organization repository.
type Repository struct {
	ID       int64
	Name     string
	FullName string
	WebURL   string
}
