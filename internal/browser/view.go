package browser

import (
	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/query"
)

// Mode is what a panel shows.
type Mode int

const (
	ModeLoading Mode = iota // nothing to show yet
	ModeError               // nothing to show, last fetch failed
	ModeReady               // data to show, possibly stale or updating
)

func (m Mode) String() string {
	switch m {
	case ModeLoading:
		return "loading"
	case ModeError:
		return "error"
	case ModeReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ErrorKind tells a not-found result apart from a failure worth retrying.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindFetch
	ErrorKindNotFound
)

// ErrorView describes a terminal failure.
type ErrorView struct {
	Kind     ErrorKind
	Message  string
	Attempts int
	CanRetry bool
}

// DetailView is the selected post panel.
type DetailView struct {
	ID         int64
	Mode       Mode
	Post       api.Post
	IsUpdating bool
	Error      *ErrorView
}

// View is everything a renderer needs to draw the browser.
type View struct {
	Mode       Mode
	Page       int
	Items      []api.Post
	TotalCount int
	HasMore    bool
	HasPrev    bool

	// IsUpdating is set while a fetch runs behind visible data.
	IsUpdating bool
	// IsPrevious is set when Items belong to the previously shown page.
	IsPrevious bool

	Error  *ErrorView
	Notice string
	Detail *DetailView
}

// Render maps view state and coordinator results to a View. It has no side
// effects.
func Render(state State, page query.Result[api.Page], post query.Result[api.Post]) View {
	v := View{
		Page:    max(state.Page, 1),
		HasPrev: state.Page > 1,
		Notice:  state.Notice,
	}

	switch {
	case page.Status == query.StatusError:
		v.Mode = ModeError
		v.Error = errorView(page.Err, page.FailureCount)
	case page.HasData:
		v.Mode = ModeReady
		v.Items = page.Data.Items
		if v.Items == nil {
			v.Items = []api.Post{}
		}
		v.TotalCount = page.Data.TotalCount
		v.HasMore = page.Data.HasMore
		v.IsUpdating = page.IsFetching
		v.IsPrevious = page.IsPrevious
	default:
		v.Mode = ModeLoading
	}

	if state.Selected != 0 {
		v.Detail = renderDetail(state.Selected, post)
	}
	return v
}

func renderDetail(id int64, post query.Result[api.Post]) *DetailView {
	d := &DetailView{ID: id}
	switch {
	case post.Status == query.StatusError:
		d.Mode = ModeError
		d.Error = errorView(post.Err, post.FailureCount)
	case post.HasData && post.Data.ID == id:
		d.Mode = ModeReady
		d.Post = post.Data
		d.IsUpdating = post.IsFetching
	default:
		d.Mode = ModeLoading
	}
	return d
}

func errorView(err error, attempts int) *ErrorView {
	ev := &ErrorView{Kind: ErrorKindFetch, Attempts: attempts, CanRetry: true}
	if err != nil {
		ev.Message = err.Error()
	}
	if api.IsNotFound(err) {
		ev.Kind = ErrorKindNotFound
		ev.CanRetry = false
	}
	return ev
}
