package main

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var (
	recordCount int64
	spikeCount  int64
	fileCount   int64
)

var (
	fileTypes = []string{"PdfFile", "PeExeFile", "ZipArchiveFile", "MsOfficeFile", "HtmlFile"}
	origins   = []string{"API", "UI", "EMAIL", "ICAP"}
)

const (
	samplePool = 2000
	userPool   = 50
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./tools <output-dir> [days] [records-per-day] [spike-factor] [analyze-url]")
		fmt.Println("Example: go run ./tools /tmp/telemetry 8 5000 5 http://localhost:8080/analyze")
		os.Exit(1)
	}

	outDir := os.Args[1]
	days := 8
	perDay := 5000
	spikeFactor := 5
	analyzeURL := ""

	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &days)
	}
	if len(os.Args) > 3 {
		fmt.Sscanf(os.Args[3], "%d", &perDay)
	}
	if len(os.Args) > 4 {
		fmt.Sscanf(os.Args[4], "%d", &spikeFactor)
	}
	if len(os.Args) > 5 {
		analyzeURL = os.Args[5]
	}
	if days < 2 || perDay < 1 {
		fmt.Println("need at least 2 days and 1 record per day")
		os.Exit(1)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	first := today.AddDate(0, 0, -days)
	spikeDay := today.AddDate(0, 0, -1)

	fmt.Printf("Telemetry Generator Configuration:\n")
	fmt.Printf("  Output:          %s\n", outDir)
	fmt.Printf("  Days:            %s - %s\n", first.Format("2006-01-02"), today.Format("2006-01-02"))
	fmt.Printf("  Records per day: %d\n", perDay)
	fmt.Printf("  Spike:           x%d on %s\n\n", spikeFactor, spikeDay.Format("2006-01-02"))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Printf("Failed to create %s: %v\n", outDir, err)
		os.Exit(1)
	}

	startTime := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, days)
	for d := 0; d < days; d++ {
		day := first.AddDate(0, 0, d)
		spike := 0
		if day.Equal(spikeDay) {
			spike = perDay * spikeFactor / 10
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := writeDay(outDir, day, perDay, spike); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		fmt.Printf("Failed: %v\n", err)
		os.Exit(1)
	}

	printResults(time.Since(startTime))

	if analyzeURL != "" {
		analyze(analyzeURL, spikeDay)
	}
}

func writeDay(dir string, day time.Time, perDay, spike int) error {
	path := filepath.Join(dir, "telemetry."+day.Format("2006-01-02")+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	rng := rand.New(rand.NewPCG(uint64(day.Unix()), 0))
	ms := day.UnixMilli()

	for i := 0; i < perDay; i++ {
		severity := "benign"
		if rng.IntN(5) == 0 {
			severity = "malicious"
		}
		record := newRecord(ms+rng.Int64N(86_400_000), severity,
			fileTypes[rng.IntN(len(fileTypes))], sampleHash(rng.IntN(samplePool)), rng)
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	// a single sample submitted over and over by a handful of users
	for i := 0; i < spike; i++ {
		record := newRecord(ms+rng.Int64N(86_400_000), "malicious", "PdfFile", sampleHash(samplePool+1), rng)
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	atomic.AddInt64(&recordCount, int64(perDay+spike))
	atomic.AddInt64(&spikeCount, int64(spike))
	atomic.AddInt64(&fileCount, 1)
	return nil
}

func newRecord(ts int64, severity, fileType, sha1 string, rng *rand.Rand) map[string]any {
	return map[string]any{
		"utc_timestamp":    ts,
		"task.severity":    severity,
		"file.llfile_type": fileType,
		"file.sha1":        sha1,
		"source.user_id":   "user-" + strconv.Itoa(rng.IntN(userPool)),
		"source.origin":    origins[rng.IntN(len(origins))],
	}
}

func sampleHash(n int) string {
	sum := sha1.Sum([]byte("sample-" + strconv.Itoa(n)))
	return hex.EncodeToString(sum[:])
}

func analyze(url string, day time.Time) {
	target := fmt.Sprintf("%s?start=%s&end=%s", url,
		day.Format("2006-01-02"), day.AddDate(0, 0, 1).Format("2006-01-02"))
	client := &http.Client{Timeout: 5 * time.Minute}

	fmt.Printf("\nPOST %s\n", target)
	resp, err := client.Post(target, "application/json", nil)
	if err != nil {
		fmt.Printf("Failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	fmt.Printf("Status: %s\n", resp.Status)
	io.Copy(os.Stdout, resp.Body)
}

func printResults(duration time.Duration) {
	total := atomic.LoadInt64(&recordCount)

	fmt.Println("==========================================")
	fmt.Println("Generated Telemetry")
	fmt.Println("==========================================")
	fmt.Printf("Duration:       %v\n", duration)
	fmt.Printf("Files:          %d\n", atomic.LoadInt64(&fileCount))
	fmt.Printf("Records:        %d\n", total)
	fmt.Printf("Spike records:  %d\n", atomic.LoadInt64(&spikeCount))
	fmt.Printf("Records/sec:    %.2f\n", float64(total)/duration.Seconds())
	fmt.Println("==========================================")
}
