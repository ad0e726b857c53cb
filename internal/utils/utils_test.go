package utils_test

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/airbusgeo/georotate/internal/utils"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ = Describe("Temporary error", func() {
	var err error

	var (
		itShouldReturnATemporaryError = func() {
			It("it should return a temporary error", func() {
				Expect(utils.Temporary(err)).To(BeTrue())
			})
		}
		itShouldReturnAPermanentError = func() {
			It("it should return a permanent error", func() {
				Expect(utils.Temporary(err)).To(BeFalse())
			})
		}
	)

	Describe("Temporary", func() {
		JustBeforeEach(func() {
			err = fmt.Errorf("temporary err :%w", utils.MakeTemporary(fmt.Errorf("Temporary")))
		})

		Context("Return temporary", func() {
			itShouldReturnATemporaryError()
		})
	})

	Describe("Permanent", func() {
		JustBeforeEach(func() {
			err = fmt.Errorf("permanent err :%v", utils.MakeTemporary(fmt.Errorf("Temporary")))
		})

		Context("Return permanent", func() {
			itShouldReturnAPermanentError()
		})
	})
})

var _ = Describe("Temporary grpc error", func() {
	It("should classify the status codes", func() {
		Expect(utils.Temporary(status.Error(codes.Unavailable, "unavailable"))).To(BeTrue())
		Expect(utils.Temporary(fmt.Errorf("wrapped: %w", status.Error(codes.ResourceExhausted, "quota")))).To(BeTrue())
		Expect(utils.Temporary(status.Error(codes.NotFound, "not found"))).To(BeFalse())
		Expect(utils.Temporary(status.Error(codes.PermissionDenied, "denied"))).To(BeFalse())
	})
})

var _ = Describe("Merge error", func() {
	var err error

	var tmpErr = utils.MakeTemporary(fmt.Errorf("Temporary"))
	var fatalErr = fmt.Errorf("Fatal")

	var (
		itShouldReturnNil = func() {
			It("it should return nil", func() {
				Expect(err).To(BeNil())
			})
		}
		itShouldReturnATemporaryError = func() {
			It("it should return a temporary error", func() {
				Expect(utils.Temporary(err)).To(BeTrue())
			})
		}
		itShouldReturnAPermanentError = func() {
			It("it should return a permanent error", func() {
				Expect(utils.Temporary(err)).To(BeFalse())
			})
		}
	)

	Describe("nil then err", func() {
		JustBeforeEach(func() {
			err = utils.MergeErrors(false, nil, fatalErr)
		})

		Context("Return temporary", func() {
			It("it should return an error", func() {
				Expect(err).To(Equal(fatalErr))
			})
		})
	})

	Describe("Temporary then fatal, priority to temporary", func() {
		JustBeforeEach(func() {
			err = utils.MergeErrors(false, tmpErr, fatalErr)
		})

		Context("Return temporary", func() {
			itShouldReturnATemporaryError()
		})
	})

	Describe("Temporary then fatal then nil, priority to temporary", func() {
		JustBeforeEach(func() {
			err = utils.MergeErrors(false, tmpErr, fatalErr, nil)
		})

		Context("Return nil", func() {
			itShouldReturnNil()
		})
	})

	Describe("Temporary then fatal then nil, priority to fatal", func() {
		JustBeforeEach(func() {
			err = utils.MergeErrors(true, tmpErr, fatalErr, nil)
		})

		Context("Return fatal", func() {
			itShouldReturnAPermanentError()
		})
	})

	Describe("Fatal then temporary, priority to temporary", func() {
		JustBeforeEach(func() {
			err = utils.MergeErrors(false, fatalErr, tmpErr)
		})

		Context("Return temporary", func() {
			itShouldReturnATemporaryError()
		})
	})

	Describe("Fatal then temporary then nil, priority to temporary", func() {
		JustBeforeEach(func() {
			err = utils.MergeErrors(false, fatalErr, tmpErr, nil)
		})

		Context("Return nil", func() {
			itShouldReturnNil()
		})
	})

	Describe("Fatal then temporary then nil, priority to fatal", func() {
		JustBeforeEach(func() {
			err = utils.MergeErrors(true, fatalErr, tmpErr, nil)
		})

		Context("Return fatal", func() {
			itShouldReturnAPermanentError()
		})
	})
})

var _ = Describe("MakeTemporary", func() {
	It("should keep the underlying error reachable", func() {
		cause := errors.New("connection reset")
		err := fmt.Errorf("upload: %w", utils.MakeTemporary(cause))
		Expect(utils.Temporary(err)).To(BeTrue())
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("should not flag a nil error", func() {
		Expect(utils.Temporary(nil)).To(BeFalse())
	})
})

var _ = Describe("F64ToS", func() {
	It("should format with the shortest exact representation", func() {
		Expect(utils.F64ToS(3.5)).To(Equal("3.5"))
		Expect(utils.F64ToS(6)).To(Equal("6"))
		Expect(utils.F64ToS(-0.1)).To(Equal("-0.1"))
	})
})

var _ = Describe("FindRegexGroups", func() {
	reg := regexp.MustCompile(`^(?P<Protocol>\w+)://(?P<Bucket>[^/]+)/(?P<Path>.*)$`)

	It("should return the named groups", func() {
		groups, err := utils.FindRegexGroups(reg, "s3://bucket/dir/raster.tif")
		Expect(err).NotTo(HaveOccurred())
		Expect(groups).To(Equal(map[string]string{"Protocol": "s3", "Bucket": "bucket", "Path": "dir/raster.tif"}))
	})

	It("should ignore the unnamed groups", func() {
		groups, err := utils.FindRegexGroups(regexp.MustCompile(`^(?P<Bucket>[^/]+)(/(?P<Path>.*))?$`), "bucket")
		Expect(err).NotTo(HaveOccurred())
		Expect(groups).To(Equal(map[string]string{"Bucket": "bucket", "Path": ""}))
	})

	It("should fail if the value does not match", func() {
		_, err := utils.FindRegexGroups(reg, "raster.tif")
		Expect(err).To(HaveOccurred())
	})
})
