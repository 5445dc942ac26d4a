package main

import (
	"errors"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"
)

func (c *cli) handleHistory(args []string) int {
	fs := c.newFlagSet("history")
	cf := addCommonFlags(fs)
	limit := fs.Int("limit", 20, "Rows per table")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if cf.dbPath == "" {
		return c.usageError(fs, "history needs --db")
	}
	registry, err := cf.openDB()
	if err != nil {
		return c.fail(err)
	}
	defer registry.Close()

	embeddings, err := registry.ListEmbeddings(*limit)
	if err != nil {
		return c.fail(err)
	}
	extractions, err := registry.ListExtractions(*limit)
	if err != nil {
		return c.fail(err)
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMBEDDINGS")
	fmt.Fprintln(tw, "ID\tWHEN\tPAYLOAD\tLAYOUT\tOUTPUT\tPSNR")
	for _, e := range embeddings {
		psnr := "inf"
		if e.PSNR != nil {
			psnr = fmt.Sprintf("%.2f", *e.PSNR)
		}
		fmt.Fprintf(tw, "%s\t%s\t%q\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Format(time.RFC3339), e.Payload, e.Layout, e.Output, psnr)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "EXTRACTIONS")
	fmt.Fprintln(tw, "ID\tWHEN\tSOURCE\tDETECTED\tPAYLOAD\tEMBEDDING")
	for _, x := range extractions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%q\t%s\n", x.ID, x.CreatedAt.Format(time.RFC3339), x.Source, x.Detected, x.Payload, x.EmbeddingID)
	}
	if err := tw.Flush(); err != nil {
		return c.fail(err)
	}
	return exitOK
}

func (c *cli) handleServe(args []string) int {
	fs := c.newFlagSet("serve")
	cf := addCommonFlags(fs)
	listen := fs.String("listen", "localhost:8080", "Listen address")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if cf.dbPath == "" {
		return c.usageError(fs, "serve needs --db")
	}
	registry, err := cf.openDB()
	if err != nil {
		return c.fail(err)
	}
	defer registry.Close()

	mux := http.NewServeMux()
	if err := registry.AttachAdminRoutes(mux); err != nil {
		return c.fail(err)
	}
	c.log.Printf("serving registry %s on http://%s/debug/", registry.Path(), *listen)
	srv := &http.Server{Addr: *listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return c.fail(err)
	}
	return exitOK
}
