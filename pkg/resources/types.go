package resources

import "time"

// TitleLight is a title as returned by list and create endpoints.
type TitleLight struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Maturity *string `json:"maturity" yaml:"maturity"`
}

// TitleCollection places a title in a collection.
type TitleCollection struct {
	CollectionID   string `json:"collection_id" yaml:"collection_id"`
	CollectionName string `json:"collection_name" yaml:"collection_name"`
	Path           string `json:"path" yaml:"path"`
}

// Title is a title with its books, collections and history.
type Title struct {
	TitleLight  `yaml:",inline"`
	Events      []string          `json:"events" yaml:"events"`
	Books       []BookLight       `json:"books" yaml:"books"`
	Collections []TitleCollection `json:"collections" yaml:"collections"`
}

// TitleCreate is the payload of a title creation.
type TitleCreate struct {
	Name     string `json:"name" yaml:"name"`
	Maturity string `json:"maturity,omitempty" yaml:"maturity,omitempty"`
}

// BookLight is a book as returned by list endpoints.
type BookLight struct {
	ID                 string    `json:"id" yaml:"id"`
	TitleID            *string   `json:"title_id" yaml:"title_id"`
	LocationKind       string    `json:"location_kind" yaml:"location_kind"`
	NeedsProcessing    bool      `json:"needs_processing" yaml:"needs_processing"`
	HasError           bool      `json:"has_error" yaml:"has_error"`
	NeedsFileOperation bool      `json:"needs_file_operation" yaml:"needs_file_operation"`
	CreatedAt          time.Time `json:"created_at" yaml:"created_at"`
	Name               *string   `json:"name" yaml:"name"`
	Date               *string   `json:"date" yaml:"date"`
	Flavour            *string   `json:"flavour" yaml:"flavour"`
}

// BookLocation is a current or target location of a book file.
type BookLocation struct {
	WarehouseName string `json:"warehouse_name" yaml:"warehouse_name"`
	Path          string `json:"path" yaml:"path"`
	Filename      string `json:"filename" yaml:"filename"`
	Status        string `json:"status" yaml:"status"`
}

// Book is a book with its ZIM metadata, check results and locations.
type Book struct {
	BookLight        `yaml:",inline"`
	ArticleCount     int                    `json:"article_count" yaml:"article_count"`
	MediaCount       int                    `json:"media_count" yaml:"media_count"`
	Size             int64                  `json:"size" yaml:"size"`
	ZimcheckResult   map[string]interface{} `json:"zimcheck_result" yaml:"zimcheck_result"`
	ZimMetadata      map[string]interface{} `json:"zim_metadata" yaml:"zim_metadata"`
	Events           []string               `json:"events" yaml:"events"`
	CurrentLocations []BookLocation         `json:"current_locations" yaml:"current_locations"`
	TargetLocations  []BookLocation         `json:"target_locations" yaml:"target_locations"`
}

// ZimURL is one way of reaching a published ZIM file.
type ZimURL struct {
	Kind       string `json:"kind" yaml:"kind"` // view or download
	URL        string `json:"url" yaml:"url"`
	Collection string `json:"collection" yaml:"collection"`
}

// ZimURLs maps book IDs to their ZIM URLs.
type ZimURLs struct {
	URLs map[string][]ZimURL `json:"urls" yaml:"urls"`
}

// Collection is a named set of title paths.
type Collection struct {
	ID    string   `json:"id" yaml:"id"`
	Name  string   `json:"name" yaml:"name"`
	Paths []string `json:"paths" yaml:"paths"`
}

// NotificationLight is a ZIM-farm notification as returned by list endpoints.
type NotificationLight struct {
	ID         string    `json:"id" yaml:"id"`
	BookID     *string   `json:"book_id" yaml:"book_id"`
	Status     string    `json:"status" yaml:"status"`
	ReceivedAt time.Time `json:"received_at" yaml:"received_at"`
}

// Notification is a notification with its raw content and history.
type Notification struct {
	NotificationLight `yaml:",inline"`
	Content           map[string]interface{} `json:"content" yaml:"content"`
	Events            []string               `json:"events" yaml:"events"`
}

// WarehousePath is a folder of a warehouse books can be moved to.
type WarehousePath struct {
	PathID        string `json:"path_id" yaml:"path_id"`
	FolderName    string `json:"folder_name" yaml:"folder_name"`
	WarehouseID   string `json:"warehouse_id" yaml:"warehouse_id"`
	WarehouseName string `json:"warehouse_name" yaml:"warehouse_name"`
}
