package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/Yardman-Mzansi/potholematic/internal/http/handlers"
	"github.com/Yardman-Mzansi/potholematic/internal/http/middleware"
)

func main() {
	_ = godotenv.Load()

	limit := "20"
	if len(os.Args) > 1 {
		limit = os.Args[1]
	}

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Println("Error: ADMIN_JWT_SECRET environment variable not set")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8008"
	}

	claims := middleware.AdminClaims{
		Scope: middleware.ScopeReportsRead,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "reports-cli",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	endpoint := fmt.Sprintf("%s/admin/reports?limit=%s", apiURL, url.QueryEscape(limit))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+tokenString)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: HTTP %d\n", resp.StatusCode)
		fmt.Printf("Response: %s\n", string(body))
		os.Exit(1)
	}

	var list handlers.ReportsListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		fmt.Printf("Response: %s\n", string(body))
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tSENDER\tLAT\tLNG\tDESCRIPTION\tIMAGE")
	for _, r := range list.Reports {
		fmt.Fprintf(w, "%s\t%s\t%.6f\t%.6f\t%s\t%s\n", r.CreatedAt, r.SenderID, r.Latitude, r.Longitude, r.Description, r.ImageLocator)
	}
	_ = w.Flush()
	fmt.Printf("%d report(s)\n", list.Count)
}
