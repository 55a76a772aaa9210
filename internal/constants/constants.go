package constants

const (
	LikeTarget          = 5
	OnboardingLikeScore = 4.0
	MinRating           = 1.0
	MaxRating           = 5.0
)

const (
	UserCookieName       = "nextplay_user"
	OnboardingCookieName = "nextplay_onboarded"
	CSRFCookieName       = "csrf_token"
)

const (
	RouteHome               = "/"
	RouteSignUp             = "/signup"
	RouteOnboardingLike     = "/onboarding/like"
	RouteOnboardingComplete = "/onboarding/complete"
	RouteDashboard          = "/dashboard"
	RouteProfile            = "/profile"
	RouteView               = "/views/:key"
	RouteRate               = "/rate"
	RouteLogout             = "/logout"
)

const (
	ErrorCodeEmptyName     = "empty_name"
	ErrorCodeInvalidRating = "invalid_rating"
	ErrorCodeUnknownView   = "unknown_view"
	ErrorCodeNetwork       = "network_error"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
)
