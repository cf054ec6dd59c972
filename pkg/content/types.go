package content

import (
	"fmt"
	"strings"
)

// Kind discriminators returned by the Content API.
const (
	KindProduct                            = "content#product"
	KindProductStatus                      = "content#productStatus"
	KindProductsListResponse               = "content#productsListResponse"
	KindProductStatusesListResponse        = "content#productstatusesListResponse"
	KindProductsCustomBatchResponse        = "content#productsCustomBatchResponse"
	KindProductStatusesCustomBatchResponse = "content#productstatusesCustomBatchResponse"
	KindAccountsAuthInfoResponse           = "content#accountsAuthInfoResponse"
	KindAccount                            = "content#account"
)

// Batch entry methods.
const (
	MethodInsert = "insert"
	MethodDelete = "delete"
	MethodGet    = "get"
)

// Price is an amount with its ISO 4217 currency.
type Price struct {
	Value    string `json:"value,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// ProductShipping is a per-product shipping rule.
type ProductShipping struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	Service string `json:"service,omitempty"`
	Price   *Price `json:"price,omitempty"`
}

// Product is a catalog item. Only the fields this client works with are
// modelled; the id is assigned by the server as
// channel:contentLanguage:feedLabel:offerId.
type Product struct {
	Kind                  string             `json:"kind,omitempty"`
	ID                    string             `json:"id,omitempty"`
	OfferID               string             `json:"offerId,omitempty"`
	Title                 string             `json:"title,omitempty"`
	Description           string             `json:"description,omitempty"`
	Link                  string             `json:"link,omitempty"`
	ImageLink             string             `json:"imageLink,omitempty"`
	AdditionalImageLinks  []string           `json:"additionalImageLinks,omitempty"`
	Channel               string             `json:"channel,omitempty"`
	ContentLanguage       string             `json:"contentLanguage,omitempty"`
	TargetCountry         string             `json:"targetCountry,omitempty"`
	FeedLabel             string             `json:"feedLabel,omitempty"`
	Availability          string             `json:"availability,omitempty"`
	Condition             string             `json:"condition,omitempty"`
	Brand                 string             `json:"brand,omitempty"`
	Gtin                  string             `json:"gtin,omitempty"`
	Mpn                   string             `json:"mpn,omitempty"`
	GoogleProductCategory string             `json:"googleProductCategory,omitempty"`
	ProductTypes          []string           `json:"productTypes,omitempty"`
	Price                 *Price             `json:"price,omitempty"`
	SalePrice             *Price             `json:"salePrice,omitempty"`
	Shipping              []*ProductShipping `json:"shipping,omitempty"`
	CustomLabel0          string             `json:"customLabel0,omitempty"`
	CustomLabel1          string             `json:"customLabel1,omitempty"`
	ExpirationDate        string             `json:"expirationDate,omitempty"`
}

// DestinationStatus is the approval state of a product for one destination.
type DestinationStatus struct {
	Destination          string   `json:"destination,omitempty"`
	Status               string   `json:"status,omitempty"`
	ApprovedCountries    []string `json:"approvedCountries,omitempty"`
	PendingCountries     []string `json:"pendingCountries,omitempty"`
	DisapprovedCountries []string `json:"disapprovedCountries,omitempty"`
}

// ItemLevelIssue is a problem reported for a single product.
type ItemLevelIssue struct {
	Code                string   `json:"code,omitempty"`
	Servability         string   `json:"servability,omitempty"`
	Resolution          string   `json:"resolution,omitempty"`
	AttributeName       string   `json:"attributeName,omitempty"`
	Destination         string   `json:"destination,omitempty"`
	Description         string   `json:"description,omitempty"`
	Detail              string   `json:"detail,omitempty"`
	Documentation       string   `json:"documentation,omitempty"`
	ApplicableCountries []string `json:"applicableCountries,omitempty"`
}

// ProductStatus is the processing status of a product.
type ProductStatus struct {
	Kind                 string               `json:"kind,omitempty"`
	ProductID            string               `json:"productId,omitempty"`
	Title                string               `json:"title,omitempty"`
	Link                 string               `json:"link,omitempty"`
	DestinationStatuses  []*DestinationStatus `json:"destinationStatuses,omitempty"`
	ItemLevelIssues      []*ItemLevelIssue    `json:"itemLevelIssues,omitempty"`
	CreationDate         string               `json:"creationDate,omitempty"`
	LastUpdateDate       string               `json:"lastUpdateDate,omitempty"`
	GoogleExpirationDate string               `json:"googleExpirationDate,omitempty"`
}

// HasIssues reports whether the status carries item-level issues.
func (s *ProductStatus) HasIssues() bool {
	return s != nil && len(s.ItemLevelIssues) > 0
}

// ProductsListResponse is one page of products.
type ProductsListResponse struct {
	Kind          string     `json:"kind,omitempty"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
	Resources     []*Product `json:"resources,omitempty"`
}

// ProductStatusesListResponse is one page of product statuses.
type ProductStatusesListResponse struct {
	Kind          string           `json:"kind,omitempty"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
	Resources     []*ProductStatus `json:"resources,omitempty"`
}

// ErrorItem is a single (reason, message) pair of a batch entry error.
type ErrorItem struct {
	Domain  string `json:"domain,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// String renders the item as "reason: message".
func (e *ErrorItem) String() string {
	if e == nil {
		return ""
	}
	if e.Reason == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Errors is the error list attached to a failed batch entry.
type Errors struct {
	Code    int64        `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []*ErrorItem `json:"errors,omitempty"`
}

// Empty reports whether no error is present.
func (e *Errors) Empty() bool {
	return e == nil || (len(e.Errors) == 0 && e.Message == "")
}

// String concatenates all error items.
func (e *Errors) String() string {
	if e.Empty() {
		return ""
	}
	if len(e.Errors) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, item.String())
	}
	return strings.Join(parts, "; ")
}

// ProductsCustomBatchRequestEntry is one operation of a products batch.
type ProductsCustomBatchRequestEntry struct {
	BatchID    int64    `json:"batchId"`
	MerchantID uint64   `json:"merchantId,string"`
	Method     string   `json:"method"`
	Product    *Product `json:"product,omitempty"`
	ProductID  string   `json:"productId,omitempty"`
	FeedID     uint64   `json:"feedId,omitempty,string"`
}

// ProductsCustomBatchRequest bundles product operations.
type ProductsCustomBatchRequest struct {
	Entries []*ProductsCustomBatchRequestEntry `json:"entries"`
}

// ProductsCustomBatchResponseEntry is the outcome of one products batch entry.
type ProductsCustomBatchResponseEntry struct {
	Kind    string   `json:"kind,omitempty"`
	BatchID int64    `json:"batchId"`
	Errors  *Errors  `json:"errors,omitempty"`
	Product *Product `json:"product,omitempty"`
}

// ProductsCustomBatchResponse is the response to a products batch.
type ProductsCustomBatchResponse struct {
	Kind    string                              `json:"kind,omitempty"`
	Entries []*ProductsCustomBatchResponseEntry `json:"entries,omitempty"`
}

// ProductStatusesCustomBatchRequestEntry is one lookup of a product statuses batch.
type ProductStatusesCustomBatchRequestEntry struct {
	BatchID           int64    `json:"batchId"`
	MerchantID        uint64   `json:"merchantId,string"`
	Method            string   `json:"method"`
	ProductID         string   `json:"productId"`
	Destinations      []string `json:"destinations,omitempty"`
	IncludeAttributes bool     `json:"includeAttributes,omitempty"`
}

// ProductStatusesCustomBatchRequest bundles product status lookups.
type ProductStatusesCustomBatchRequest struct {
	Entries []*ProductStatusesCustomBatchRequestEntry `json:"entries"`
}

// ProductStatusesCustomBatchResponseEntry is the outcome of one status lookup.
type ProductStatusesCustomBatchResponseEntry struct {
	Kind          string         `json:"kind,omitempty"`
	BatchID       int64          `json:"batchId"`
	Errors        *Errors        `json:"errors,omitempty"`
	ProductStatus *ProductStatus `json:"productStatus,omitempty"`
}

// ProductStatusesCustomBatchResponse is the response to a product statuses batch.
type ProductStatusesCustomBatchResponse struct {
	Kind    string                                     `json:"kind,omitempty"`
	Entries []*ProductStatusesCustomBatchResponseEntry `json:"entries,omitempty"`
}

// AccountIdentifier names an account the authenticated identity can access.
type AccountIdentifier struct {
	AggregatorID uint64 `json:"aggregatorId,omitempty,string"`
	MerchantID   uint64 `json:"merchantId,omitempty,string"`
}

// AccountsAuthInfoResponse lists the accounts available to the caller.
type AccountsAuthInfoResponse struct {
	Kind               string               `json:"kind,omitempty"`
	AccountIdentifiers []*AccountIdentifier `json:"accountIdentifiers,omitempty"`
}

// Account is a Merchant Center account. Label ids are uint64 values encoded
// as strings.
type Account struct {
	Kind              string   `json:"kind,omitempty"`
	ID                uint64   `json:"id,omitempty,string"`
	Name              string   `json:"name,omitempty"`
	WebsiteURL        string   `json:"websiteUrl,omitempty"`
	AdultContent      bool     `json:"adultContent,omitempty"`
	SellerID          string   `json:"sellerId,omitempty"`
	LabelIDs          []string `json:"labelIds,omitempty"`
	AutomaticLabelIDs []string `json:"automaticLabelIds,omitempty"`
}

// DeliveryTime is the transit window of a shipping service.
type DeliveryTime struct {
	MinTransitTimeInDays  int64 `json:"minTransitTimeInDays,omitempty"`
	MaxTransitTimeInDays  int64 `json:"maxTransitTimeInDays,omitempty"`
	MinHandlingTimeInDays int64 `json:"minHandlingTimeInDays,omitempty"`
	MaxHandlingTimeInDays int64 `json:"maxHandlingTimeInDays,omitempty"`
}

// ShippingService is one configured shipping service.
type ShippingService struct {
	Name            string        `json:"name,omitempty"`
	Active          bool          `json:"active,omitempty"`
	DeliveryCountry string        `json:"deliveryCountry,omitempty"`
	Currency        string        `json:"currency,omitempty"`
	DeliveryTime    *DeliveryTime `json:"deliveryTime,omitempty"`
}

// PostalCodeRange is an inclusive range of postal codes.
type PostalCodeRange struct {
	PostalCodeRangeBegin string `json:"postalCodeRangeBegin,omitempty"`
	PostalCodeRangeEnd   string `json:"postalCodeRangeEnd,omitempty"`
}

// PostalCodeGroup is a named set of postal code ranges in one country.
type PostalCodeGroup struct {
	Name             string             `json:"name,omitempty"`
	Country          string             `json:"country,omitempty"`
	PostalCodeRanges []*PostalCodeRange `json:"postalCodeRanges,omitempty"`
}

// ShippingSettings are the shipping settings of an account.
type ShippingSettings struct {
	AccountID        uint64             `json:"accountId,omitempty,string"`
	Services         []*ShippingService `json:"services,omitempty"`
	PostalCodeGroups []*PostalCodeGroup `json:"postalCodeGroups,omitempty"`
}
